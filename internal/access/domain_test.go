package access

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleWireFormat(t *testing.T) {
	cases := []struct {
		rule Rule
		want string
	}{
		{Public(), `{"access":"public"}`},
		{Authenticated(), `{"access":"authenticated"}`},
		{RoleRestricted("admin", "users"), `{"roles":["admin","users"]}`},
		{RoleRestricted(), `{"roles":[]}`},
		{Unspecified(), `{}`},
	}
	for _, tc := range cases {
		data, err := json.Marshal(tc.rule)
		require.NoError(t, err)
		assert.JSONEq(t, tc.want, string(data))

		var back Rule
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, tc.rule.Kind, back.Kind)
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := DefaultDocument()
	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	var back Document
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, doc, back)

	// Round-trip is stable modulo key ordering.
	again, err := json.MarshalIndent(back, "", "  ")
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestDocumentFieldNames(t *testing.T) {
	data, err := json.Marshal(DefaultDocument())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "version")
	assert.Contains(t, raw, "default_access")
	assert.Contains(t, raw, "pages")
}

func TestDocumentKeepsUnknownPageKeys(t *testing.T) {
	const stored = `{"version":"1.0","default_access":"deny","pages":{"/":{"access":"public"},"/legacy-report":{"roles":["admin"]}}}`

	var doc Document
	require.NoError(t, json.Unmarshal([]byte(stored), &doc))
	assert.Equal(t, RuleRoleRestricted, doc.Rule("/legacy-report").Kind)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, stored, string(data))
}

func TestUnknownAccessValueDegradesToUnspecified(t *testing.T) {
	var rule Rule
	require.NoError(t, json.Unmarshal([]byte(`{"access":"vip"}`), &rule))
	assert.Equal(t, RuleUnspecified, rule.Kind)
}

func TestCloneIsDeep(t *testing.T) {
	doc := DefaultDocument()
	clone := doc.Clone()
	clone.Pages["/"] = Authenticated()
	clone.Pages["/user-admin"].Roles[0] = "mutated"

	assert.Equal(t, RulePublic, doc.Rule("/").Kind)
	assert.Equal(t, []string{"admin"}, doc.Rule("/user-admin").Roles)
}
