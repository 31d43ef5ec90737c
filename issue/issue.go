// Package issue defines server-reported issues and stores them on disk,
// one batch per source file path.
package issue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kjk/shardstore/siser"
	"github.com/kjk/shardstore/store"
)

// TextRange is a range of text within a file. Lines are 1-based.
type TextRange struct {
	StartLine       int `json:"startLine"`
	StartLineOffset int `json:"startLineOffset,omitempty"`
	EndLine         int `json:"endLine,omitempty"`
	EndLineOffset   int `json:"endLineOffset,omitempty"`
}

type Location struct {
	Path    string `json:"path"`
	Message string `json:"message,omitempty"`
	// nil for issues reported on a whole file
	TextRange *TextRange `json:"textRange,omitempty"`
}

// Issue is an issue as reported by the server
type Issue struct {
	Key             string    `json:"key"`
	RuleKey         string    `json:"ruleKey,omitempty"`
	Message         string    `json:"message,omitempty"`
	Severity        string    `json:"severity,omitempty"`
	Type            string    `json:"type,omitempty"`
	Status          string    `json:"status,omitempty"`
	Resolution      string    `json:"resolution,omitempty"`
	Checksum        string    `json:"checksum,omitempty"`
	CreationDate    time.Time `json:"creationDate,omitzero"`
	Manual          bool      `json:"manual,omitempty"`
	PrimaryLocation Location  `json:"primaryLocation"`
}

// ByPath is the key under which an issue is stored
func ByPath(i Issue) string {
	return i.PrimaryLocation.Path
}

// NewStore opens a store of issues in dir
func NewStore(dir string, opts *store.Options) (*store.Store[Issue], error) {
	var o store.Options
	if opts != nil {
		o = *opts
	}
	if o.RecordName == "" {
		o.RecordName = "issue"
	}
	return store.Open[Issue](dir, Codec{}, &o)
}

// Save stores issues grouped by path of their primary location,
// replacing issues previously stored for those paths
func Save(s *store.Store[Issue], issues []Issue) error {
	return s.SaveGrouped(issues, ByPath)
}

// names of keys in serialized record
const (
	kKey        = "key"
	kRule       = "rule"
	kMessage    = "message"
	kSeverity   = "severity"
	kType       = "type"
	kStatus     = "status"
	kResolution = "resolution"
	kChecksum   = "checksum"
	kCreated    = "created"
	kManual     = "manual"
	kPath       = "path"
	kLocMessage = "loc_message"
	kRange      = "range"
)

// Codec serializes Issue as siser key/value record:
//
//	key: AX-123
//	rule: go:S1234
//	path: src/main.go
//	range: 11:0-11:12
//
// Empty fields are not written. Unknown keys are ignored when reading.
// CreationDate is stored as unix milliseconds so it's read back in UTC,
// truncated to milliseconds (the precision used by the server).
type Codec struct{}

func (Codec) MarshalRecord(i Issue) ([]byte, error) {
	var r siser.Record
	err := r.WriteNonEmpty(
		kKey, i.Key,
		kRule, i.RuleKey,
		kMessage, i.Message,
		kSeverity, i.Severity,
		kType, i.Type,
		kStatus, i.Status,
		kResolution, i.Resolution,
		kChecksum, i.Checksum,
	)
	if err != nil {
		return nil, err
	}
	if !i.CreationDate.IsZero() {
		if err = r.Write(kCreated, i.CreationDate.UnixMilli()); err != nil {
			return nil, err
		}
	}
	if i.Manual {
		if err = r.Write(kManual, true); err != nil {
			return nil, err
		}
	}
	// path is always written, even if empty, so that a record is never empty
	if err = r.Write(kPath, i.PrimaryLocation.Path); err != nil {
		return nil, err
	}
	if err = r.WriteNonEmpty(kLocMessage, i.PrimaryLocation.Message); err != nil {
		return nil, err
	}
	if tr := i.PrimaryLocation.TextRange; tr != nil {
		if err = r.Write(kRange, FormatTextRange(tr)); err != nil {
			return nil, err
		}
	}
	return r.Marshal(), nil
}

func (Codec) UnmarshalRecord(d []byte) (Issue, error) {
	var res Issue
	rec, err := siser.UnmarshalRecord(d, nil)
	if err != nil {
		return res, err
	}
	for _, e := range rec.Entries {
		v := e.Value
		switch e.Key {
		case kKey:
			res.Key = v
		case kRule:
			res.RuleKey = v
		case kMessage:
			res.Message = v
		case kSeverity:
			res.Severity = v
		case kType:
			res.Type = v
		case kStatus:
			res.Status = v
		case kResolution:
			res.Resolution = v
		case kChecksum:
			res.Checksum = v
		case kCreated:
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return res, fmt.Errorf("invalid %s '%s'", kCreated, v)
			}
			res.CreationDate = time.UnixMilli(ms).UTC()
		case kManual:
			res.Manual, err = strconv.ParseBool(v)
			if err != nil {
				return res, fmt.Errorf("invalid %s '%s'", kManual, v)
			}
		case kPath:
			res.PrimaryLocation.Path = v
		case kLocMessage:
			res.PrimaryLocation.Message = v
		case kRange:
			res.PrimaryLocation.TextRange, err = ParseTextRange(v)
			if err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// FormatTextRange formats as "startLine:startOffset-endLine:endOffset"
func FormatTextRange(tr *TextRange) string {
	return fmt.Sprintf("%d:%d-%d:%d", tr.StartLine, tr.StartLineOffset, tr.EndLine, tr.EndLineOffset)
}

// ParseTextRange parses range formatted with FormatTextRange
func ParseTextRange(s string) (*TextRange, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("invalid text range '%s'", s)
	}
	var tr TextRange
	var err error
	tr.StartLine, tr.StartLineOffset, err = parseLineOffset(start)
	if err != nil {
		return nil, fmt.Errorf("invalid text range '%s': %w", s, err)
	}
	tr.EndLine, tr.EndLineOffset, err = parseLineOffset(end)
	if err != nil {
		return nil, fmt.Errorf("invalid text range '%s': %w", s, err)
	}
	return &tr, nil
}

func parseLineOffset(s string) (int, int, error) {
	lineStr, offStr, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("missing ':' in '%s'", s)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil {
		return 0, 0, err
	}
	off, err := strconv.Atoi(offStr)
	if err != nil {
		return 0, 0, err
	}
	return line, off, nil
}
