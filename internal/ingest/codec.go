package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"alertstate/internal/domain"
	"alertstate/internal/evalerr"
)

const (
	maxPooledBatchCapacity = 4096
	defaultOrgID           = 1
)

// Submission is one evaluation result addressed to a configured rule.
// Params: rule identity and decoded result.
// Returns: unit pushed into the result sink.
type Submission struct {
	RuleUID string
	OrgID   int64
	Result  domain.Result
}

// wireResult is the JSON form of one submission.
type wireResult struct {
	RuleUID              string               `json:"rule_uid"`
	OrgID                int64                `json:"org_id,omitempty"`
	Labels               map[string]string    `json:"labels,omitempty"`
	State                string               `json:"state"`
	EvaluatedAt          time.Time            `json:"evaluated_at"`
	EvaluationDurationMS int64                `json:"evaluation_duration_ms,omitempty"`
	EvaluationString     string               `json:"evaluation_string,omitempty"`
	Values               map[string]wireValue `json:"values,omitempty"`
	Error                *wireError           `json:"error,omitempty"`
}

type wireValue struct {
	Value  *float64          `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
}

type wireError struct {
	Message string `json:"message"`
	RefID   string `json:"ref_id,omitempty"`
}

type decodeScratch struct {
	items []wireResult
}

var decodeScratchPool = sync.Pool{
	New: func() any {
		return &decodeScratch{items: make([]wireResult, 0, 16)}
	},
}

// DecodePayload auto-detects batch vs single payload.
// Params: raw JSON bytes with one object or array.
// Returns: validated submissions.
func DecodePayload(raw []byte) ([]Submission, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()

	if payload[0] != '[' {
		var item wireResult
		if err := decoder.Decode(&item); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		if err := ensureJSONEOF(decoder); err != nil {
			return nil, err
		}
		submission, err := item.submission()
		if err != nil {
			return nil, err
		}
		return []Submission{submission}, nil
	}

	scratch := acquireDecodeScratch()
	defer releaseDecodeScratch(scratch)
	items := scratch.items[:0]
	if err := decoder.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode result batch: %w", err)
	}
	scratch.items = items
	if len(items) == 0 {
		return nil, errors.New("result batch must contain at least one result")
	}
	if err := ensureJSONEOF(decoder); err != nil {
		return nil, err
	}
	out := make([]Submission, 0, len(items))
	for i := range items {
		submission, err := items[i].submission()
		if err != nil {
			return nil, fmt.Errorf("result[%d]: %w", i, err)
		}
		out = append(out, submission)
	}
	return out, nil
}

// EncodeSubmission renders one submission in wire form.
// Params: submission to encode.
// Returns: JSON bytes or marshal error.
func EncodeSubmission(submission Submission) ([]byte, error) {
	result := submission.Result
	item := wireResult{
		RuleUID:              submission.RuleUID,
		OrgID:                submission.OrgID,
		Labels:               result.Instance,
		State:                result.State.String(),
		EvaluatedAt:          result.EvaluatedAt,
		EvaluationDurationMS: result.EvaluationDuration.Milliseconds(),
		EvaluationString:     result.EvaluationString,
	}
	if len(result.Values) > 0 {
		item.Values = make(map[string]wireValue, len(result.Values))
		for ref, capture := range result.Values {
			item.Values[ref] = wireValue{Value: capture.Value, Labels: capture.Labels}
		}
	}
	if message, refID := evalerr.Encode(result.Error); message != "" {
		item.Error = &wireError{Message: message, RefID: refID}
	}
	return json.Marshal(item)
}

// submission validates wire fields and converts them into a domain result.
func (w wireResult) submission() (Submission, error) {
	ruleUID := strings.TrimSpace(w.RuleUID)
	if ruleUID == "" {
		return Submission{}, errors.New("rule_uid is required")
	}
	orgID := w.OrgID
	if orgID == 0 {
		orgID = defaultOrgID
	}
	if orgID < 0 {
		return Submission{}, fmt.Errorf("org_id must be >0, got %d", w.OrgID)
	}
	stateValue, err := domain.ParseEvalState(w.State)
	if err != nil {
		return Submission{}, err
	}
	if !stateValue.IsOutcome() {
		return Submission{}, fmt.Errorf("state %s is not an evaluation outcome", stateValue)
	}
	if w.EvaluatedAt.IsZero() {
		return Submission{}, errors.New("evaluated_at is required")
	}
	if w.EvaluationDurationMS < 0 {
		return Submission{}, errors.New("evaluation_duration_ms must be >=0")
	}
	if w.Error != nil && stateValue != domain.Error && stateValue != domain.NoData {
		return Submission{}, fmt.Errorf("error is not allowed with state %s", stateValue)
	}

	result := domain.Result{
		Instance:           domain.Labels(w.Labels).Copy(),
		State:              stateValue,
		EvaluatedAt:        w.EvaluatedAt.UTC(),
		EvaluationDuration: time.Duration(w.EvaluationDurationMS) * time.Millisecond,
		EvaluationString:   w.EvaluationString,
	}
	if len(w.Values) > 0 {
		result.Values = make(map[string]domain.NumberValueCapture, len(w.Values))
		for ref, value := range w.Values {
			result.Values[ref] = domain.NumberValueCapture{
				Var:    ref,
				Labels: domain.Labels(value.Labels).Copy(),
				Value:  value.Value,
			}
		}
	}
	if w.Error != nil {
		if strings.TrimSpace(w.Error.Message) == "" {
			return Submission{}, errors.New("error.message is required")
		}
		result.Error = evalerr.Decode(w.Error.Message, strings.TrimSpace(w.Error.RefID))
	}
	return Submission{RuleUID: ruleUID, OrgID: orgID, Result: result}, nil
}

func acquireDecodeScratch() *decodeScratch {
	return decodeScratchPool.Get().(*decodeScratch)
}

func releaseDecodeScratch(scratch *decodeScratch) {
	if scratch == nil {
		return
	}
	for i := range scratch.items {
		scratch.items[i] = wireResult{}
	}
	if cap(scratch.items) > maxPooledBatchCapacity {
		scratch.items = make([]wireResult, 0, 16)
	} else {
		scratch.items = scratch.items[:0]
	}
	decodeScratchPool.Put(scratch)
}

// ensureJSONEOF rejects trailing tokens after a decoded JSON payload.
// Params: decoder positioned after primary decode.
// Returns: nil on EOF or error on trailing tokens.
func ensureJSONEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode trailing json: %w", err)
	}
	return errors.New("unexpected trailing json tokens")
}
