package batch

import (
	"errors"
	"fmt"

	"github.com/paydesk/remitsheet/internal/sheets"
)

// ErrGenerationInFlight is returned when Generate is called while a previous
// generation has not finished.
var ErrGenerationInFlight = errors.New("a generation is already in progress")

// ValidationError is an input problem caught before any network call.
type ValidationError struct {
	Op      string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	msgEmptyBatch  = "the transfer list is empty: add at least one vendor"
	msgNoEligible  = "no eligible line items: enter a valid amount payable or fee for at least one vendor"
	msgMissingTerm = "keyword"
)

// Message turns a generation error into text for the operator.
func Message(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, ErrGenerationInFlight):
		return err.Error()
	}
	if key, ok := sheets.MissingRowKey(err); ok {
		if key == "" {
			key = msgMissingTerm
		}
		return fmt.Sprintf("generation failed: check the \"mainData\" sheet and make sure column B has a cell containing \"%s\"", key)
	}
	if sheets.IsConnectivity(err) {
		return "generation failed: " + sheets.ConnectivityMessage
	}
	return "generation failed: " + err.Error()
}
