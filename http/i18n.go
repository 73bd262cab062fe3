package http

import (
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var supportedLanguages = []language.Tag{
	language.English,
	language.Indonesian,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

const (
	msgSurvived    = "Survived"
	msgNotSurvived = "Did not survive"
	msgConfidence  = "Confidence: %.1f%%"
	msgTitle       = "Horse colic survival prediction"
	msgPredict     = "Predict"
	msgInvalid     = "Invalid value for %s"
	msgUnavailable = "The model is not available"
)

func init() {
	for _, entry := range []struct {
		tag      language.Tag
		key, msg string
	}{
		{language.English, msgSurvived, "Survived"},
		{language.English, msgNotSurvived, "Did not survive"},
		{language.English, msgConfidence, "Confidence: %.1f%%"},
		{language.English, msgTitle, "Horse colic survival prediction"},
		{language.English, msgPredict, "Predict"},
		{language.English, msgInvalid, "Invalid value for %s"},
		{language.English, msgUnavailable, "The model is not available"},
		{language.Indonesian, msgSurvived, "Selamat"},
		{language.Indonesian, msgNotSurvived, "Tidak Selamat"},
		{language.Indonesian, msgConfidence, "Keyakinan: %.1f%%"},
		{language.Indonesian, msgTitle, "Prediksi kelangsungan hidup kuda kolik"},
		{language.Indonesian, msgPredict, "Prediksi"},
		{language.Indonesian, msgInvalid, "Nilai tidak valid untuk %s"},
		{language.Indonesian, msgUnavailable, "Model tidak tersedia"},
	} {
		_ = message.SetString(entry.tag, entry.key, entry.msg)
	}
}

// requestLanguage picks English or Indonesian from ?lang= or Accept-Language.
func requestLanguage(r *http.Request) language.Tag {
	var tags []language.Tag
	if lang := r.URL.Query().Get("lang"); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			tags = append(tags, tag)
		}
	}
	if accepted, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil {
		tags = append(tags, accepted...)
	}
	_, index, confidence := languageMatcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supportedLanguages[index]
}

func verdict(p *message.Printer, survived bool) string {
	if survived {
		return p.Sprintf(msgSurvived)
	}
	return p.Sprintf(msgNotSurvived)
}
