package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payoutSchema() JSONSchema {
	return JSONSchema{
		Type:     "object",
		Required: []string{"accountId", "amount"},
		Properties: map[string]Property{
			"accountId": {Type: "string", MinLength: IntPtr(1)},
			"amount":    {Type: "string", Pattern: StringPtr(`^[0-9]*(\.[0-9]{1,2})?$`)},
			"action":    {Type: "string", Enum: []string{"start", "complete"}},
			"reason":    {Type: "string", Nullable: true},
		},
		AdditionalProperties: false,
	}
}

func TestValidateInput_Valid(t *testing.T) {
	res := ValidateInput(map[string]interface{}{
		"accountId": "acct-1",
		"amount":    "100.00",
		"action":    "start",
		"reason":    nil,
	}, payoutSchema())

	assert.True(t, res.Valid, res.Error())
	assert.Empty(t, res.Errors)
}

func TestValidateInput_Errors(t *testing.T) {
	res := ValidateInput(map[string]interface{}{
		"amount": "1.234",
		"action": "explode",
		"extra":  true,
	}, payoutSchema())

	require.False(t, res.Valid)

	fields := map[string]bool{}
	for _, e := range res.Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["accountId"], "missing required field reported")
	assert.True(t, fields["amount"], "pattern mismatch reported")
	assert.True(t, fields["action"], "enum violation reported")
	assert.NotEmpty(t, res.GetErrorMessages())
	assert.Contains(t, res.Error(), "accountId")
}
