package nlu

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	errx "github.com/chative/botcore/internal/core/error"
	logx "github.com/chative/botcore/pkg/logger"
)

const (
	recDelim = "##"
	tupDelim = "<||>"
	endDelim = "<|COMPLETE|>"
)

// safety limits against pathological model output
const (
	maxContentLen = 64 * 1024
	maxRecords    = 200
	maxTupleLen   = 4 * 1024
	maxMetaLen    = 2 * 1024
	maxErrSnippet = 120
)

// ScoredIntent is one intent candidate reported by the model.
type ScoredIntent struct {
	Name       string
	Confidence float64
}

// ScoredEntity is one entity reported by the model.
type ScoredEntity struct {
	Type       string
	Value      string
	Confidence float64
}

// Analysis is the parsed form of a tuple-formatted NLU completion.
type Analysis struct {
	Intents        []ScoredIntent
	Entities       []ScoredEntity
	Language       string
	SentimentLabel string
	SentimentScore float64
	HasSentiment   bool
	Errors         []string
	Truncated      bool
	RecordsCapped  bool
}

// BestIntent returns the first intent with the highest confidence.
func (a *Analysis) BestIntent() (ScoredIntent, bool) {
	best := ScoredIntent{Confidence: -1}
	for _, it := range a.Intents {
		if it.Confidence > best.Confidence {
			best = it
		}
	}
	return best, best.Confidence >= 0
}

// ParseAnalysis parses records of the form
//
//	(intent<||>name<||>confidence)##(entity<||>type<||>value<||>confidence)##
//	(language<||>code<||>confidence)##(sentiment<||>label<||>score<||>{meta})<|COMPLETE|>
//
// Bad records are skipped and reported in Errors. It only fails on panic.
func ParseAnalysis(content string) (a *Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "nlu_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("nlu parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			a = nil
		}
	}()

	a = &Analysis{}
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "nlu_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
		a.Truncated = true
	}
	if idx := strings.Index(content, endDelim); idx >= 0 {
		content = content[:idx]
	}

	processed := 0
	for _, rec := range strings.Split(content, recDelim) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		if processed >= maxRecords {
			a.RecordsCapped = true
			break
		}
		processed++

		typ, parts, perr := splitTuple(rec)
		if perr != nil {
			a.addErr("bad_record: " + snippet(rec))
			continue
		}
		switch typ {
		case "intent":
			a.parseIntent(parts)
		case "entity":
			a.parseEntity(parts)
		case "language":
			a.parseLanguage(parts)
		case "sentiment":
			a.parseSentiment(parts)
		default:
			a.addErr("unknown tuple type: " + snippet(typ))
		}
	}
	return a, nil
}

func (a *Analysis) addErr(msg string) {
	a.Errors = append(a.Errors, msg)
}

func (a *Analysis) parseIntent(parts []string) {
	if len(parts) < 2 {
		a.addErr("intent: insufficient parts")
		return
	}
	name := strings.ToLower(strings.TrimSpace(parts[0]))
	if name == "" || !utf8.ValidString(name) {
		a.addErr("intent: invalid name")
		return
	}
	conf, err := floatInRange(parts[1], 0, 1)
	if err != nil {
		a.addErr("intent: invalid confidence")
		return
	}
	a.Intents = append(a.Intents, ScoredIntent{Name: name, Confidence: conf})
}

func (a *Analysis) parseEntity(parts []string) {
	if len(parts) < 3 {
		a.addErr("entity: insufficient parts")
		return
	}
	typ := strings.ToLower(strings.TrimSpace(parts[0]))
	val := strings.TrimSpace(parts[1])
	if typ == "" || val == "" || !utf8.ValidString(typ) || !utf8.ValidString(val) {
		a.addErr("entity: invalid type or value")
		return
	}
	conf, err := floatInRange(parts[2], 0, 1)
	if err != nil {
		a.addErr("entity: invalid confidence")
		return
	}
	a.Entities = append(a.Entities, ScoredEntity{Type: typ, Value: val, Confidence: conf})
}

func (a *Analysis) parseLanguage(parts []string) {
	if len(parts) < 1 {
		a.addErr("language: insufficient parts")
		return
	}
	code := strings.ToLower(strings.TrimSpace(parts[0]))
	if !isLanguageCode(code) {
		a.addErr("language: invalid code")
		return
	}
	if a.Language == "" {
		a.Language = code
	}
}

func (a *Analysis) parseSentiment(parts []string) {
	if len(parts) < 2 {
		a.addErr("sentiment: insufficient parts")
		return
	}
	label := strings.ToLower(strings.TrimSpace(parts[0]))
	if label == "" || !utf8.ValidString(label) {
		a.addErr("sentiment: invalid label")
		return
	}
	score, err := floatInRange(parts[1], -1, 1)
	if err != nil {
		a.addErr("sentiment: invalid score")
		return
	}
	if len(parts) >= 3 {
		if _, err := parseMeta(parts[2]); err != nil {
			a.addErr("sentiment: invalid metadata json")
		}
	}
	a.SentimentLabel = label
	a.SentimentScore = score
	a.HasSentiment = true
}

// splitTuple strips the outer parens and returns the record type plus its
// remaining fields.
func splitTuple(s string) (string, []string, error) {
	if len(s) > maxTupleLen {
		return "", nil, fmt.Errorf("tuple too large")
	}
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", nil, fmt.Errorf("invalid tuple parens")
	}
	parts := strings.SplitN(s[1:len(s)-1], tupDelim, 5)
	if len(parts) < 2 {
		return "", nil, fmt.Errorf("invalid tuple parts")
	}
	return strings.ToLower(strings.TrimSpace(parts[0])), parts[1:], nil
}

func floatInRange(s string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < min || v > max {
		return 0, fmt.Errorf("%v out of range [%v, %v]", v, min, max)
	}
	return v, nil
}

func parseMeta(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}, nil
	}
	if len(s) > maxMetaLen {
		return nil, fmt.Errorf("metadata too large")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// isLanguageCode accepts ISO 639-1 and 639-3 style lowercase codes.
func isLanguageCode(code string) bool {
	if len(code) != 2 && len(code) != 3 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'a' || code[i] > 'z' {
			return false
		}
	}
	return true
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
