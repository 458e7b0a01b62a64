// Package seed loads the embedded fixture tables the store starts from.
//
// Fixtures are YAML lists, one file per table. String values of the form
// "@now+3d", "@today-5", or "@month-1" are resolved against the load time so
// seeded bookings and deals always sit around the present.
package seed

import (
	"embed"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/starford/gts-portal/internal/models"
)

//go:embed fixtures/*.yaml
var fixtures embed.FS

// PasswordCost is the bcrypt cost used for seeded user passwords.
var PasswordCost = bcrypt.DefaultCost

var relRe = regexp.MustCompile(`^@(now|today|month)(?:([+-]\d+)([dh])?)?$`)

// Load returns every fixture table, resolved against now.
func Load(now time.Time) (map[string][]map[string]any, error) {
	out := make(map[string][]map[string]any, len(models.Tables))
	for _, table := range models.Tables {
		rows, err := Table(table, now)
		if err != nil {
			return nil, err
		}
		out[table] = rows
	}
	return out, nil
}

// Table returns the fixture rows of a single table, resolved against now.
// A table without a fixture file is empty.
func Table(table string, now time.Time) ([]map[string]any, error) {
	data, err := fixtures.ReadFile("fixtures/" + table + ".yaml")
	if err != nil {
		return []map[string]any{}, nil
	}

	var rows []map[string]any
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("seed: parse %s: %w", table, err)
	}

	for _, row := range rows {
		for k, v := range row {
			if s, ok := v.(string); ok {
				row[k] = resolve(s, now)
			}
		}
		if table == models.TableUsers {
			if err := hashPassword(row); err != nil {
				return nil, fmt.Errorf("seed: %s: %w", table, err)
			}
		}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

// hashPassword replaces a plaintext "password" with its bcrypt hash.
func hashPassword(row map[string]any) error {
	pw, ok := row["password"].(string)
	delete(row, "password")
	if !ok || pw == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), PasswordCost)
	if err != nil {
		return err
	}
	row["password_hash"] = string(hash)
	return nil
}

// resolve expands a relative date token; any other string is returned as is.
func resolve(s string, now time.Time) string {
	m := relRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	n := 0
	if m[2] != "" {
		n, _ = strconv.Atoi(m[2])
	}
	now = now.UTC()

	switch m[1] {
	case "today":
		return now.AddDate(0, 0, n).Format("2006-01-02")
	case "month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first.AddDate(0, n, 0).Format("2006-01")
	default:
		t := now.Truncate(time.Second)
		if m[3] == "h" {
			t = t.Add(time.Duration(n) * time.Hour)
		} else {
			t = t.AddDate(0, 0, n)
		}
		return t.Format(time.RFC3339)
	}
}
