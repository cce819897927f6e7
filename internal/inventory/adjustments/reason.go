package adjustments

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ReasonCode enumerates the standard adjustment reasons.
type ReasonCode string

const (
	ReasonStocktakeDiscrepancy ReasonCode = "STOCKTAKE_DISCREPANCY"
	ReasonDamaged              ReasonCode = "DAMAGED"
	ReasonExpired              ReasonCode = "EXPIRED"
	ReasonLost                 ReasonCode = "LOST"
	ReasonDataEntryError       ReasonCode = "DATA_ENTRY_ERROR"
	// ReasonOther carries a free-text reason in Reason.Text.
	ReasonOther ReasonCode = "OTHER"
)

var reasonLabels = map[ReasonCode]string{
	ReasonStocktakeDiscrepancy: "Kiểm kê phát hiện chênh lệch",
	ReasonDamaged:              "Hàng hư hỏng",
	ReasonExpired:              "Hàng hết hạn sử dụng",
	ReasonLost:                 "Hàng thất lạc",
	ReasonDataEntryError:       "Nhập liệu sai",
}

// ReasonCodes lists the enumerated codes in display order.
var ReasonCodes = []ReasonCode{
	ReasonStocktakeDiscrepancy,
	ReasonDamaged,
	ReasonExpired,
	ReasonLost,
	ReasonDataEntryError,
}

// Label returns the display label of c, or "" for OTHER and unknown codes.
func (c ReasonCode) Label() string {
	return reasonLabels[c]
}

// Reason is either one of the enumerated codes or OTHER with free text.
type Reason struct {
	Code ReasonCode `json:"code"`
	Text string     `json:"text,omitempty"`
}

// Other builds a free-text reason.
func Other(text string) Reason {
	return Reason{Code: ReasonOther, Text: strings.TrimSpace(text)}
}

// IsOther reports whether r is a free-text reason.
func (r Reason) IsOther() bool {
	return r.Code == ReasonOther
}

// String renders the label for enumerated reasons and the text otherwise.
func (r Reason) String() string {
	if r.IsOther() {
		return r.Text
	}
	if label := r.Code.Label(); label != "" {
		return label
	}
	return string(r.Code)
}

// Casers are stateful, so each key gets its own.
func reasonKey(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

var reasonIndex = func() map[string]ReasonCode {
	idx := make(map[string]ReasonCode, len(reasonLabels)*2)
	for code, label := range reasonLabels {
		idx[reasonKey(string(code))] = code
		idx[reasonKey(label)] = code
	}
	return idx
}()

// ParseReason resolves raw against the enumerated codes and labels. Anything
// else, OTHER included, becomes a free-text reason taken from notes, which
// must then be present.
func ParseReason(raw, notes string) (Reason, error) {
	if strings.TrimSpace(raw) == "" {
		return Reason{}, ErrReasonRequired
	}
	if code, ok := reasonIndex[reasonKey(raw)]; ok {
		return Reason{Code: code}, nil
	}
	if strings.TrimSpace(notes) == "" {
		return Reason{}, ErrNotesRequired
	}
	return Other(notes), nil
}
