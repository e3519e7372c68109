package osc

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

var (
	errMissingField   = errors.New("missing required field")
	errUnknownState   = errors.New("unknown state")
	errNegativeLimit  = errors.New("rate limit must not be negative")
	errUnknownEnum    = errors.New("unknown value")
	errNegativeRetry  = errors.New("swap retry count must not be negative")
	errNotJSONObject  = errors.New("parameters must be a JSON object")
	errEmptyParameter = errors.New("parameters are empty")
)

// RateLimitConfig throttles the remote data migration job. Zero means unlimited.
type RateLimitConfig struct {
	RowLimit      int `json:"rowLimit"`
	DataSizeLimit int `json:"dataSizeLimit"`
}

func (r RateLimitConfig) Validate() error {
	if r.RowLimit < 0 || r.DataSizeLimit < 0 {
		return fmt.Errorf("%w: rowLimit=%d dataSizeLimit=%d", errNegativeLimit, r.RowLimit, r.DataSizeLimit)
	}

	return nil
}

// CleanStrategy decides what happens to the original table after the swap.
type CleanStrategy string

const (
	CleanRenameAndReserve CleanStrategy = "ORIGIN_TABLE_RENAME_AND_RESERVED"
	CleanDrop             CleanStrategy = "ORIGIN_TABLE_DROP"
)

// SwapTableType selects whether the swap runs as soon as the data is in sync
// or waits for an operator.
type SwapTableType string

const (
	SwapAuto   SwapTableType = "AUTO"
	SwapManual SwapTableType = "MANUAL"
)

// TaskParameters is the JSON document stored in a task's parameters column.
// Fields this package does not know about are kept in Extra and written
// back unchanged.
type TaskParameters struct {
	State                State           `json:"state"`
	ExtraInfo            string          `json:"extraInfo,omitempty"`
	RateLimit            RateLimitConfig `json:"rateLimitConfig"`
	DatabaseName         string          `json:"databaseName"`
	OriginTableName      string          `json:"originTableName"`
	NewTableName         string          `json:"newTableName"`
	RenamedTableName     string          `json:"renamedTableName,omitempty"`
	OriginTableCreateDDL string          `json:"originTableCreateDdl,omitempty"`
	NewTableCreateDDL    string          `json:"newTableCreateDdl,omitempty"`
	// DataTaskID identifies the remote migration job once it has been created.
	DataTaskID string `json:"dataTaskId,omitempty"`
	// ManualSwapTableEnabled is set by the monitor once a MANUAL job's data
	// is in sync and the swap waits for an operator.
	ManualSwapTableEnabled bool `json:"manualSwapTableEnabled,omitempty"`
	// ManualSwapTableStarted is set by Machine.SwapTable and releases the monitor.
	ManualSwapTableStarted bool `json:"manualSwapTableStarted,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ParseTaskParameters decodes a task's parameters. A missing state reads as
// StateYieldContext.
func ParseTaskParameters(raw string) (*TaskParameters, error) {
	p := &TaskParameters{}
	if err := decodeParameters(raw, p); err != nil {
		return nil, fmt.Errorf("decoding task parameters: %w", err)
	}

	if p.State == "" {
		p.State = StateYieldContext
	}

	return p, nil
}

func (p *TaskParameters) UnmarshalJSON(data []byte) error {
	type plain TaskParameters

	var known plain

	extra, err := splitUnknown(data, &known)
	if err != nil {
		return err
	}

	*p = TaskParameters(known)
	p.Extra = extra

	return nil
}

func (p TaskParameters) MarshalJSON() ([]byte, error) {
	type plain TaskParameters

	return mergeUnknown(plain(p), p.Extra)
}

// Encode returns the JSON text stored in the task record.
func (p *TaskParameters) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding task parameters: %w", err)
	}

	return string(b), nil
}

// Clone returns a deep copy of p.
func (p *TaskParameters) Clone() *TaskParameters {
	c := *p

	if p.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}

	return &c
}

func (p *TaskParameters) Validate() error {
	var missing []string

	for name, value := range map[string]string{
		"databaseName":    p.DatabaseName,
		"originTableName": p.OriginTableName,
		"newTableName":    p.NewTableName,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return fmt.Errorf("%w: %s", errMissingField, strings.Join(missing, ", "))
	}

	if !p.State.Valid() {
		return fmt.Errorf("%w: %q", errUnknownState, p.State)
	}

	return p.RateLimit.Validate()
}

// JobParameters is the JSON document stored in a schedule's job parameters.
type JobParameters struct {
	// FlowInstanceID links the job to an upstream approval workflow. Zero
	// means the job runs standalone.
	FlowInstanceID           int64           `json:"flowInstanceId,omitempty"`
	FlowTaskID               int64           `json:"flowTaskID,omitempty"`
	SQLContent               string          `json:"sqlContent,omitempty"`
	SwapTableNameRetryTimes  int             `json:"swapTableNameRetryTimes,omitempty"`
	OriginTableCleanStrategy CleanStrategy   `json:"originTableCleanStrategy,omitempty"`
	SwapTableType            SwapTableType   `json:"swapTableType,omitempty"`
	ErrorStrategy            string          `json:"errorStrategy,omitempty"`
	RateLimit                RateLimitConfig `json:"rateLimitConfig"`

	Extra map[string]json.RawMessage `json:"-"`
}

func ParseJobParameters(raw string) (*JobParameters, error) {
	p := &JobParameters{}
	if err := decodeParameters(raw, p); err != nil {
		return nil, fmt.Errorf("decoding job parameters: %w", err)
	}

	return p, nil
}

func (p *JobParameters) UnmarshalJSON(data []byte) error {
	type plain JobParameters

	var known plain

	extra, err := splitUnknown(data, &known)
	if err != nil {
		return err
	}

	*p = JobParameters(known)
	p.Extra = extra

	return nil
}

func (p JobParameters) MarshalJSON() ([]byte, error) {
	type plain JobParameters

	return mergeUnknown(plain(p), p.Extra)
}

func (p *JobParameters) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding job parameters: %w", err)
	}

	return string(b), nil
}

func (p *JobParameters) Validate() error {
	switch p.OriginTableCleanStrategy {
	case "", CleanRenameAndReserve, CleanDrop:
	default:
		return fmt.Errorf("%w: originTableCleanStrategy %q", errUnknownEnum, p.OriginTableCleanStrategy)
	}

	switch p.SwapTableType {
	case "", SwapAuto, SwapManual:
	default:
		return fmt.Errorf("%w: swapTableType %q", errUnknownEnum, p.SwapTableType)
	}

	if p.SwapTableNameRetryTimes < 0 {
		return fmt.Errorf("%w: %d", errNegativeRetry, p.SwapTableNameRetryTimes)
	}

	return p.RateLimit.Validate()
}

func decodeParameters(raw string, into any) error {
	if strings.TrimSpace(raw) == "" {
		return errEmptyParameter
	}

	return json.Unmarshal([]byte(raw), into)
}

// splitUnknown decodes data into known and returns the top-level members
// that have no matching json tag on known's type.
func splitUnknown(data []byte, known any) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: %w", errNotJSONObject, err)
	}

	names := jsonKeys(reflect.TypeOf(known).Elem())

	for key := range all {
		if isKnownKey(names, key) {
			delete(all, key)
		}
	}

	if len(all) == 0 {
		return nil, nil //nolint:nilnil
	}

	return all, nil
}

func mergeUnknown(known any, extra map[string]json.RawMessage) ([]byte, error) {
	b, err := json.Marshal(known)
	if err != nil || len(extra) == 0 {
		return b, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}

	names := jsonKeys(reflect.TypeOf(known))

	for k, v := range extra {
		if !isKnownKey(names, k) {
			merged[k] = v
		}
	}

	return json.Marshal(merged)
}

// isKnownKey matches the way encoding/json assigns members to fields:
// exactly, or else ignoring case.
func isKnownKey(names map[string]struct{}, key string) bool {
	if _, ok := names[key]; ok {
		return true
	}

	for name := range names {
		if strings.EqualFold(name, key) {
			return true
		}
	}

	return false
}

var keyCache sync.Map //nolint:gochecknoglobals

// jsonKeys lists the member names encoding/json uses for t's fields.
func jsonKeys(t reflect.Type) map[string]struct{} {
	if cached, ok := keyCache.Load(t); ok {
		return cached.(map[string]struct{}) //nolint:forcetypeassert
	}

	keys := make(map[string]struct{}, t.NumField())

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}

		if name == "" {
			name = f.Name
		}

		keys[name] = struct{}{}
	}

	keyCache.Store(t, keys)

	return keys
}
