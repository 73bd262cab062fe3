package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"horsecolic/ml"

	"go.uber.org/zap"
)

// CleaningRule inspects one record. It returns the (possibly corrected)
// record, or an error to reject it.
type CleaningRule interface {
	Apply(*Record) (*Record, error)
	Name() string
}

// QualityIssue is a rejection or correction found while cleaning.
type QualityIssue struct {
	Type      string    `json:"type"`
	Severity  string    `json:"severity"` // low, medium, high
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	RecordID  string    `json:"record_id"`
	Line      int       `json:"line"`
}

// DataCleaner runs every rule over each record in order.
type DataCleaner struct {
	rules      []CleaningRule
	logger     *zap.Logger
	issues     []QualityIssue
	issuesLock sync.RWMutex

	stats     CleaningStats
	statsLock sync.RWMutex
}

type CleaningStats struct {
	TotalProcessed int64            `json:"total_processed"`
	Passed         int64            `json:"passed"`
	Rejected       int64            `json:"rejected"`
	Corrected      int64            `json:"corrected"`
	Issues         map[string]int64 `json:"issues"`
	LastClean      time.Time        `json:"last_clean"`
}

// NewDataCleaner returns a cleaner with the default rules.
func NewDataCleaner(logger *zap.Logger) *DataCleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cleaner := &DataCleaner{
		rules:  make([]CleaningRule, 0),
		logger: logger,
		issues: make([]QualityIssue, 0),
		stats: CleaningStats{
			Issues: make(map[string]int64),
		},
	}

	cleaner.AddRule(NewOutcomeValidationRule())
	cleaner.AddRule(NewRangeValidationRule())
	cleaner.AddRule(NewDuplicateDetectionRule())

	return cleaner
}

func (dc *DataCleaner) AddRule(rule CleaningRule) {
	dc.rules = append(dc.rules, rule)
	dc.logger.Debug("added cleaning rule", zap.String("rule", rule.Name()))
}

// Clean returns the records that passed every rule and the issues found.
// Input records are never modified.
func (dc *DataCleaner) Clean(records []*Record) ([]*Record, []QualityIssue) {
	var cleaned []*Record
	var issues []QualityIssue

	dc.statsLock.Lock()
	defer dc.statsLock.Unlock()

	for _, original := range records {
		dc.stats.TotalProcessed++

		record := original.clone()
		var recordIssues []QualityIssue
		for _, rule := range dc.rules {
			out, err := rule.Apply(record)
			if err != nil {
				recordIssues = append(recordIssues, QualityIssue{
					Type:      rule.Name(),
					Severity:  "high",
					Message:   err.Error(),
					Timestamp: time.Now(),
					RecordID:  record.ID,
					Line:      record.Line,
				})
				dc.recordIssue(rule.Name())
				break
			}
			if out != nil {
				record = out
			}
		}

		if len(recordIssues) > 0 {
			dc.stats.Rejected++
			issues = append(issues, recordIssues...)
			continue
		}
		if changed := changedColumns(original, record); len(changed) > 0 {
			dc.stats.Corrected++
			dc.recordIssue("correction")
			issues = append(issues, QualityIssue{
				Type:      "correction",
				Severity:  "low",
				Message:   "set to missing: " + strings.Join(changed, ", "),
				Timestamp: time.Now(),
				RecordID:  record.ID,
				Line:      record.Line,
			})
		}
		dc.stats.Passed++
		cleaned = append(cleaned, record)
	}
	dc.stats.LastClean = time.Now()

	dc.issuesLock.Lock()
	dc.issues = append(dc.issues, issues...)
	dc.issuesLock.Unlock()

	dc.logger.Info("dataset cleaned",
		zap.Int("input", len(records)),
		zap.Int("kept", len(cleaned)),
		zap.Int("issues", len(issues)),
	)
	return cleaned, issues
}

func changedColumns(a, b *Record) []string {
	var changed []string
	for name, before := range a.Row {
		after := b.Row[name]
		if before == after || (ml.IsMissing(before) && ml.IsMissing(after)) {
			continue
		}
		changed = append(changed, name)
	}
	sort.Strings(changed)
	return changed
}

func (dc *DataCleaner) recordIssue(issueType string) {
	dc.stats.Issues[issueType]++
}

func (dc *DataCleaner) GetStats() CleaningStats {
	dc.statsLock.RLock()
	defer dc.statsLock.RUnlock()

	stats := dc.stats
	stats.Issues = make(map[string]int64, len(dc.stats.Issues))
	for k, v := range dc.stats.Issues {
		stats.Issues[k] = v
	}
	return stats
}

// GetIssues returns the most recent limit issues; limit <= 0 returns all.
func (dc *DataCleaner) GetIssues(limit int) []QualityIssue {
	dc.issuesLock.RLock()
	defer dc.issuesLock.RUnlock()

	if limit <= 0 || limit > len(dc.issues) {
		limit = len(dc.issues)
	}

	issues := make([]QualityIssue, limit)
	copy(issues, dc.issues[len(dc.issues)-limit:])
	return issues
}

func (dc *DataCleaner) ClearIssues() {
	dc.issuesLock.Lock()
	defer dc.issuesLock.Unlock()

	dc.issues = make([]QualityIssue, 0)
}

// OutcomeValidationRule rejects outcome codes outside the code book.
// A missing outcome is kept; it labels as not survived.
type OutcomeValidationRule struct {
	allowed map[float64]bool
}

func NewOutcomeValidationRule() *OutcomeValidationRule {
	allowed := make(map[float64]bool)
	for _, c := range ml.CodeBook[ml.OutcomeColumn] {
		allowed[c.Value] = true
	}
	return &OutcomeValidationRule{allowed: allowed}
}

func (r *OutcomeValidationRule) Name() string {
	return "outcome_validation"
}

func (r *OutcomeValidationRule) Apply(record *Record) (*Record, error) {
	if ml.IsMissing(record.Outcome) || r.allowed[record.Outcome] {
		return record, nil
	}
	return nil, fmt.Errorf("outcome %v is not a known code", record.Outcome)
}

// RangeValidationRule blanks physiologically implausible or non-finite values
// so the imputer treats them as missing.
type RangeValidationRule struct{}

func NewRangeValidationRule() *RangeValidationRule {
	return &RangeValidationRule{}
}

func (r *RangeValidationRule) Name() string {
	return "range_validation"
}

func (r *RangeValidationRule) Apply(record *Record) (*Record, error) {
	for _, issue := range ml.CheckRecord(ml.RecordFromRow(record.Row)) {
		if _, ok := record.Row[issue.Column]; !ok {
			return nil, fmt.Errorf("unexpected issue %s", issue)
		}
		record.Row[issue.Column] = ml.Missing()
	}
	return record, nil
}

// DuplicateDetectionRule rejects a record identical to one already seen.
type DuplicateDetectionRule struct {
	seenMap map[string]int
	mu      sync.Mutex
}

func NewDuplicateDetectionRule() *DuplicateDetectionRule {
	return &DuplicateDetectionRule{
		seenMap: make(map[string]int),
	}
}

func (r *DuplicateDetectionRule) Name() string {
	return "duplicate_detection"
}

func (r *DuplicateDetectionRule) Apply(record *Record) (*Record, error) {
	key := recordKey(record)

	r.mu.Lock()
	defer r.mu.Unlock()

	if line, exists := r.seenMap[key]; exists {
		return nil, fmt.Errorf("duplicate of record %s at line %d", record.ID, line)
	}
	r.seenMap[key] = record.Line
	return record, nil
}

func recordKey(record *Record) string {
	var b strings.Builder
	b.WriteString(record.ID)
	for _, name := range ml.FeatureNames() {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(record.Row[name], 'g', -1, 64))
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(record.Outcome, 'g', -1, 64))
	return b.String()
}
