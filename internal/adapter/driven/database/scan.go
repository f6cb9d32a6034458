package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codexnumeris/codexnumeris/internal/domain/model"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*model.Project, error) {
	var p model.Project
	var description, url, language, org sql.NullString
	var createdAt, updatedAt nullTime
	var topics jsonStrings

	err := s.Scan(&p.ID, &p.Name, &description, &url, &p.Stars, &language, &org, &createdAt, &updatedAt, &topics)
	if err != nil {
		return nil, err
	}

	p.Description = stringPtr(description)
	p.URL = url.String
	p.Language = stringPtr(language)
	p.Organization = stringPtr(org)
	p.CreatedAt = createdAt.ptr()
	p.UpdatedAt = updatedAt.ptr()
	p.Topics = []string(topics)
	if p.Topics == nil {
		p.Topics = []string{}
	}

	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// nullTime scans a timestamp stored either natively or as text.
type nullTime struct {
	Time  time.Time
	Valid bool
}

// Scan implements sql.Scanner.
func (nt *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	case time.Time:
		nt.Time, nt.Valid = v.UTC(), true
		return nil
	case string:
		return nt.parse(v)
	case []byte:
		return nt.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (nt *nullTime) parse(s string) error {
	if s == "" {
		nt.Time, nt.Valid = time.Time{}, false
		return nil
	}
	t, err := parseTime(s)
	if err != nil {
		return err
	}
	nt.Time, nt.Valid = t.UTC(), true
	return nil
}

func (nt nullTime) ptr() *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// jsonStrings scans a JSON array of strings stored as TEXT or JSONB.
type jsonStrings []string

// Scan implements sql.Scanner.
func (js *jsonStrings) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*js = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("unsupported topics type %T", src)
		}
		raw = encoded
	}

	if len(raw) == 0 {
		*js = nil
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode topics: %w", err)
	}
	*js = out
	return nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
