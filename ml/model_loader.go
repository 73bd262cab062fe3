package ml

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	artifactMagic = "HCPIPE"
	// ArtifactVersion is bumped whenever the encoded Pipeline layout changes.
	ArtifactVersion = 1
)

// Save writes the pipeline to path. The file is written next to its final
// location and renamed into place, so readers never observe a partial artifact.
func (p *Pipeline) Save(path string) error {
	if len(p.Tree.Nodes) == 0 {
		return ErrNotFitted
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := p.encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install artifact: %w", err)
	}
	return nil
}

func (p *Pipeline) encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(artifactMagic); err != nil {
		return fmt.Errorf("write artifact header: %w", err)
	}
	if err := bw.WriteByte(byte(ArtifactVersion)); err != nil {
		return fmt.Errorf("write artifact header: %w", err)
	}
	if err := gob.NewEncoder(bw).Encode(p); err != nil {
		return fmt.Errorf("encode pipeline: %w", err)
	}
	return bw.Flush()
}

// LoadModel reads a pipeline written by Save and checks it against the
// compiled schema. A schema drift matches both ErrArtifactCorrupt and
// ErrSchemaMismatch.
func LoadModel(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	defer f.Close()

	p, err := decodePipeline(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	if err := p.checkSchema(CurrentSchema()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactCorrupt, err)
	}
	return p, nil
}

func decodePipeline(r io.Reader) (*Pipeline, error) {
	header := make([]byte, len(artifactMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrArtifactCorrupt)
	}
	if string(header[:len(artifactMagic)]) != artifactMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrArtifactCorrupt)
	}
	if v := int(header[len(artifactMagic)]); v != ArtifactVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrArtifactCorrupt, v)
	}
	var p Pipeline
	if err := gob.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactCorrupt, err)
	}
	if len(p.Tree.Nodes) == 0 {
		return nil, fmt.Errorf("%w: empty tree", ErrArtifactCorrupt)
	}
	return &p, nil
}

func (p *Pipeline) checkSchema(want Schema) error {
	if !p.Schema.Equal(want) {
		return &SchemaError{Reason: fmt.Sprintf("artifact schema %s, binary expects %s", p.Schema.Fingerprint(), want.Fingerprint())}
	}
	width := p.Preprocessor.Width()
	for _, node := range p.Tree.Nodes {
		if !node.IsLeaf && (node.FeatureIdx < 0 || node.FeatureIdx >= width) {
			return fmt.Errorf("tree references column %d of %d", node.FeatureIdx, width)
		}
	}
	return nil
}
