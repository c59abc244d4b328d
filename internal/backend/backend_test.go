package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		id      string
		want    Ref
		wantErr bool
	}{
		{id: "provider_google", want: ProviderRef{ProviderID: "google"}},
		{id: "provider_my_memory", want: ProviderRef{ProviderID: "my_memory"}},
		{id: "managed_12", want: ManagedRef{AssistantID: 12}},
		{id: "  managed_7 ", want: ManagedRef{AssistantID: 7}},
		{id: "asst_abc123", want: VendorAssistantRef{AssistantID: "asst_abc123"}},
		{id: "tunedModels/translator-v2", want: VendorAssistantRef{AssistantID: "tunedModels/translator-v2"}},
		{id: "", wantErr: true},
		{id: "provider_", wantErr: true},
		{id: "managed_", wantErr: true},
		{id: "managed_abc", wantErr: true},
		{id: "managed_0", wantErr: true},
		{id: "managed_-3", wantErr: true},
		{id: "managed_007", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := Parse(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, KindInvalid, KindOf(tt.id))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Kind(), KindOf(tt.id))
		})
	}
}

func TestRef_StringRoundTrip(t *testing.T) {
	for _, id := range []string{"provider_google", "managed_42", "asst_x"} {
		ref, err := Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, ref.String())
	}
	assert.Equal(t, "provider_systran", Provider("systran"))
	assert.Equal(t, "managed_3", Managed(3))
}

func TestKindOf_PureProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prefix := rapid.SampledFrom([]string{"", "provider_", "managed_", "asst_", "tunedModels/"}).Draw(t, "prefix")
		id := prefix + rapid.String().Draw(t, "suffix")

		first := KindOf(id)
		for i := 0; i < 3; i++ {
			if got := KindOf(id); got != first {
				t.Fatalf("KindOf(%q) changed from %v to %v", id, first, got)
			}
		}
	})
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "provider", KindProvider.String())
	assert.Equal(t, "managed", KindManaged.String())
	assert.Equal(t, "vendor_assistant", KindVendorAssistant.String())
	assert.Equal(t, "invalid", KindInvalid.String())
}
