// Package siteconfig reads and writes versioned YAML site configuration
// documents.
//
// Version 2 documents list typed site blocks:
//
//	version: 2
//	office: 3
//	sites:
//	  - name: alpha
//	    rollover: O
//	    payback: {type: 수동, days: [월, 당일], percent: 10, sameDayPercent: 5}
//	    settlement: {enabled: true, days: 30, rules: [{total: 50, point: "5"}]}
//
// Documents without a version (or version 1) use the legacy flat layout
// keyed by site name, where settlement is enabled by the flag "O".
package siteconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/louisbranch/siteledger/internal/platform/civil"
	apperrors "github.com/louisbranch/siteledger/internal/platform/errors"
	"github.com/louisbranch/siteledger/internal/services/attendance/domain"
	"github.com/louisbranch/siteledger/internal/services/attendance/storage"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const legacySettlementOn = "O"

type header struct {
	Version int   `yaml:"version"`
	Office  int64 `yaml:"office"`
}

type document struct {
	Version int       `yaml:"version"`
	Office  int64     `yaml:"office,omitempty"`
	Sites   []siteDoc `yaml:"sites"`
}

type siteDoc struct {
	Name           string        `yaml:"name"`
	AttendanceType string        `yaml:"attendanceType,omitempty"`
	Rollover       string        `yaml:"rollover,omitempty"`
	Payback        paybackDoc    `yaml:"payback,omitempty"`
	Settlement     settlementDoc `yaml:"settlement,omitempty"`
}

type paybackDoc struct {
	Type           string   `yaml:"type,omitempty"`
	Days           []string `yaml:"days,omitempty,flow"`
	Percent        amount   `yaml:"percent,omitempty"`
	SameDayPercent amount   `yaml:"sameDayPercent,omitempty"`
}

type settlementDoc struct {
	Enabled   bool      `yaml:"enabled,omitempty"`
	Days      int       `yaml:"days,omitempty"`
	StartDate string    `yaml:"startDate,omitempty"`
	Rules     []ruleDoc `yaml:"rules,omitempty"`
	Total     amount    `yaml:"total,omitempty"`
	Point     string    `yaml:"point,omitempty"`
}

type ruleDoc struct {
	Total amount `yaml:"total"`
	Point string `yaml:"point,omitempty"`
}

type legacyDocument struct {
	Version int                   `yaml:"version"`
	Office  int64                 `yaml:"office"`
	Sites   map[string]legacySite `yaml:"sites"`
}

type legacySite struct {
	AttendanceType  string     `yaml:"attendanceType"`
	Rollover        string     `yaml:"rollover"`
	Settlement      string     `yaml:"settlement"`
	SettlementTotal amount     `yaml:"settlementTotal"`
	SettlementPoint string     `yaml:"settlementPoint"`
	SettlementDays  int        `yaml:"settlementDays"`
	SettlementRules []ruleDoc  `yaml:"settlementRules"`
	Payback         paybackDoc `yaml:"payback"`
}

// amount is a decimal that accepts YAML numbers, numeric strings and blanks.
type amount struct {
	decimal.Decimal
}

func (a *amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", node.Line)
	}
	value := strings.TrimSpace(node.Value)
	if node.Tag == "!!null" || value == "" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q", node.Line, node.Value)
	}
	a.Decimal = d
	return nil
}

func (a amount) MarshalYAML() (any, error) {
	tag := "!!float"
	if a.Decimal.IsInteger() {
		tag = "!!int"
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: a.Decimal.String()}, nil
}

// Parse decodes a site configuration document into normalized records.
func Parse(data []byte) ([]storage.SiteConfigRecord, error) {
	var head header
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, invalid("decode site config header", err)
	}
	switch head.Version {
	case 0, 1:
		return parseLegacy(data)
	case domain.SiteConfigVersion:
		return parseV2(data)
	default:
		reason := fmt.Sprintf("unsupported version %d", head.Version)
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidConfig, "site config: "+reason,
			map[string]string{"field": "version", "reason": reason})
	}
}

// LoadFile reads and parses a site configuration document from path.
func LoadFile(path string) ([]storage.SiteConfigRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config %s: %w", path, err)
	}
	return Parse(data)
}

func parseV2(data []byte) ([]storage.SiteConfigRecord, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid("decode site config", err)
	}
	records := make([]storage.SiteConfigRecord, 0, len(doc.Sites))
	seen := make(map[string]bool, len(doc.Sites))
	for i, site := range doc.Sites {
		name := domain.NormalizeName(site.Name)
		if name == "" {
			return nil, apperrors.WithMetadata(apperrors.CodeValidationFailed,
				fmt.Sprintf("site %d has no name", i+1), map[string]string{"field": "name"})
		}
		if seen[name] {
			reason := fmt.Sprintf("site %q is listed twice", name)
			return nil, apperrors.WithMetadata(apperrors.CodeInvalidConfig, "site config: "+reason,
				map[string]string{"field": "name", "reason": reason})
		}
		seen[name] = true
		cfg, err := site.config()
		if err != nil {
			return nil, err
		}
		records = append(records, storage.SiteConfigRecord{SiteName: name, OfficeID: doc.Office, Config: cfg})
	}
	return records, nil
}

func parseLegacy(data []byte) ([]storage.SiteConfigRecord, error) {
	var doc legacyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, invalid("decode legacy site config", err)
	}
	names := make([]string, 0, len(doc.Sites))
	for name := range doc.Sites {
		names = append(names, name)
	}
	slices.Sort(names)

	records := make([]storage.SiteConfigRecord, 0, len(names))
	for _, raw := range names {
		name := domain.NormalizeName(raw)
		if name == "" {
			continue
		}
		legacy := doc.Sites[raw]
		site := siteDoc{
			Name:           name,
			AttendanceType: legacy.AttendanceType,
			Rollover:       legacy.Rollover,
			Payback:        legacy.Payback,
			Settlement: settlementDoc{
				Enabled: strings.TrimSpace(legacy.Settlement) == legacySettlementOn,
				Days:    legacy.SettlementDays,
				Rules:   legacy.SettlementRules,
				Total:   legacy.SettlementTotal,
				Point:   legacy.SettlementPoint,
			},
		}
		cfg, err := site.config()
		if err != nil {
			return nil, err
		}
		records = append(records, storage.SiteConfigRecord{SiteName: name, OfficeID: doc.Office, Config: cfg})
	}
	return records, nil
}

func (s siteDoc) config() (domain.SiteConfig, error) {
	rollover, err := ParseRollover(s.Rollover)
	if err != nil {
		return domain.SiteConfig{}, err
	}
	var start civil.Date
	if raw := strings.TrimSpace(s.Settlement.StartDate); raw != "" {
		start, err = civil.Parse(raw)
		if err != nil {
			return domain.SiteConfig{}, apperrors.WithMetadata(apperrors.CodeInvalidDate,
				fmt.Sprintf("site %q: invalid settlement start date", s.Name),
				map[string]string{"field": "settlement.startDate", "value": raw})
		}
	}
	rules := make([]domain.SettlementRule, 0, len(s.Settlement.Rules))
	for _, rule := range s.Settlement.Rules {
		rules = append(rules, domain.SettlementRule{Total: rule.Total.Decimal, Point: rule.Point})
	}
	cfg := domain.SiteConfig{
		AttendanceType: domain.ParseAttendanceType(s.AttendanceType),
		Rollover:       rollover,
		Payback: domain.PaybackConfig{
			Type:           s.Payback.Type,
			Days:           s.Payback.Days,
			Percent:        s.Payback.Percent.Decimal,
			SameDayPercent: s.Payback.SameDayPercent.Decimal,
		},
		Settlement: domain.SettlementConfig{
			Enabled:   s.Settlement.Enabled,
			Days:      s.Settlement.Days,
			StartDate: start,
			Rules:     rules,
			Total:     s.Settlement.Total.Decimal,
			Point:     s.Settlement.Point,
		},
	}
	return cfg.Normalize(), nil
}

// ParseRollover validates a rollover flag from user input. Blank input
// selects the reset policy.
func ParseRollover(value string) (domain.Rollover, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", string(domain.RolloverReset):
		return domain.RolloverReset, nil
	case string(domain.RolloverCarry):
		return domain.RolloverCarry, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeInvalidRollover,
			fmt.Sprintf("invalid rollover %q", value), map[string]string{"value": value})
	}
}

// Encode renders records as a version 2 document. Records are grouped under
// the office of the first record.
func Encode(records []storage.SiteConfigRecord) ([]byte, error) {
	doc := document{Version: domain.SiteConfigVersion, Sites: make([]siteDoc, 0, len(records))}
	for i, record := range records {
		if i == 0 {
			doc.Office = record.OfficeID
		} else if record.OfficeID != doc.Office {
			return nil, errors.New("site configs span more than one office")
		}
		doc.Sites = append(doc.Sites, encodeSite(record.SiteName, record.Config.Normalize()))
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode site config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode site config: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeSite(name string, cfg domain.SiteConfig) siteDoc {
	site := siteDoc{
		Name:           name,
		AttendanceType: string(cfg.AttendanceType),
		Rollover:       string(cfg.Rollover),
		Payback: paybackDoc{
			Type:           cfg.Payback.Type,
			Days:           cfg.Payback.Days,
			Percent:        amount{cfg.Payback.Percent},
			SameDayPercent: amount{cfg.Payback.SameDayPercent},
		},
		Settlement: settlementDoc{
			Enabled: cfg.Settlement.Enabled,
			Days:    cfg.Settlement.Days,
			Total:   amount{cfg.Settlement.Total},
			Point:   cfg.Settlement.Point,
		},
	}
	if !cfg.Settlement.StartDate.IsZero() {
		site.Settlement.StartDate = cfg.Settlement.StartDate.String()
	}
	for _, rule := range cfg.Settlement.Rules {
		site.Settlement.Rules = append(site.Settlement.Rules, ruleDoc{Total: amount{rule.Total}, Point: rule.Point})
	}
	return site
}

func invalid(message string, err error) error {
	return &apperrors.Error{
		Code:     apperrors.CodeInvalidConfig,
		Message:  fmt.Sprintf("%s: %v", message, err),
		Metadata: map[string]string{"reason": err.Error()},
		Cause:    err,
	}
}
