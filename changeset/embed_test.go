package changeset

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type identity struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider_state"`
}

type oidcState struct {
	ClientID     string `json:"client_id"`
	DiscoveryURL string `json:"discovery_url"`
}

func (oidcState) VariantTag() string { return "oidc" }

func buildOIDCState(existing oidcState, attrs map[string]any) Changeset[oidcState] {
	cs := Cast(existing, attrs, "client_id", "discovery_url")
	return ValidateRequired(cs, "client_id")
}

func Test_CastPolymorphicEmbed_FlattensValidEmbed(t *testing.T) {
	attrs := map[string]any{
		"name": "corp-sso",
		"provider_state": map[string]any{
			"client_id": "abc123",
		},
	}

	cs := Cast(identity{ID: "i1"}, attrs, "name", "provider_state")
	cs = CastPolymorphicEmbed(cs, "provider_state", oidcState{DiscoveryURL: "https://idp.test/"}, false, buildOIDCState)
	require.True(t, cs.Valid())

	changes, err := cs.Changes()
	require.NoError(t, err)
	require.Equal(t, "corp-sso", changes["name"])

	// The embed is stored as a serialized tagged union document, never as a
	// live nested structure.
	doc, ok := changes["provider_state"].(string)
	require.True(t, ok)

	var stored struct {
		Kind string         `json:"kind"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &stored))
	require.Equal(t, "oidc", stored.Kind)
	require.Equal(t, "abc123", stored.Data["client_id"])
	// Changes overlay the existing value; untouched fields survive.
	require.Equal(t, "https://idp.test/", stored.Data["discovery_url"])
}

func Test_CastPolymorphicEmbed_InvalidEmbedInvalidatesParent(t *testing.T) {
	attrs := map[string]any{
		"name":           "corp-sso",
		"provider_state": map[string]any{"discovery_url": "https://idp.test/"},
	}

	cs := Cast(identity{}, attrs, "name", "provider_state")
	cs = CastPolymorphicEmbed(cs, "provider_state", oidcState{}, false, buildOIDCState)

	// Other top-level changes are valid, the embed is not: the whole
	// changeset is invalid and nothing reaches storage.
	require.False(t, cs.Valid())
	require.Equal(t, []string{"can't be blank"}, cs.Errors().On("provider_state.client_id"))

	changes, err := cs.Changes()
	require.Nil(t, changes)

	var verrs Errors
	require.True(t, errors.As(err, &verrs))
}

func Test_CastPolymorphicEmbed_Required(t *testing.T) {
	cs := Cast(identity{}, nil, "provider_state")
	cs = CastPolymorphicEmbed(cs, "provider_state", oidcState{}, true, buildOIDCState)

	require.False(t, cs.Valid())
	require.Equal(t, []string{"can't be blank"}, cs.Errors().On("provider_state"))
}

func Test_CastPolymorphicEmbed_OptionalAndAbsent(t *testing.T) {
	cs := Cast(identity{}, nil, "provider_state")
	cs = CastPolymorphicEmbed(cs, "provider_state", oidcState{}, false, buildOIDCState)

	require.True(t, cs.Valid())
	_, ok := cs.GetChange("provider_state")
	require.False(t, ok)
}

func Test_CastPolymorphicEmbed_ExistingValueWithoutSubmission(t *testing.T) {
	existing := oidcState{ClientID: "abc123", DiscoveryURL: "https://idp.test/"}

	cs := Cast(identity{}, nil, "provider_state")
	cs = CastPolymorphicEmbed(cs, "provider_state", existing, true, buildOIDCState)
	require.True(t, cs.Valid())

	changes, err := cs.Changes()
	require.NoError(t, err)

	var stored struct {
		Kind string         `json:"kind"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(changes["provider_state"].(string)), &stored))
	require.Equal(t, "abc123", stored.Data["client_id"])
}

func Test_CastPolymorphicEmbed_SkipsErroredCarrier(t *testing.T) {
	cs := Cast(identity{}, map[string]any{"provider_state": map[string]any{}}, "provider_state")
	cs = cs.AddError("provider_state", "is reserved")

	called := false
	cs = CastPolymorphicEmbed(cs, "provider_state", oidcState{}, true,
		func(existing oidcState, attrs map[string]any) Changeset[oidcState] {
			called = true
			return Cast(existing, attrs)
		})

	// Already-invalid carriers are never embed-validated.
	require.False(t, called)
	require.Len(t, cs.Errors(), 1)
}

func Test_CastPolymorphicEmbed_RejectsMalformedSubmission(t *testing.T) {
	cs := Cast(identity{}, map[string]any{"provider_state": "not-a-map"}, "provider_state")
	cs = CastPolymorphicEmbed(cs, "provider_state", oidcState{}, false, buildOIDCState)

	require.False(t, cs.Valid())
	require.Equal(t, []string{"is invalid"}, cs.Errors().On("provider_state"))
}
