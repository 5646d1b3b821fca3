package application

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lens-recorder/internal/domain"
)

func TestNegotiateStopsAtFirstSuccess(t *testing.T) {
	backend := newFakeBackend()
	n := NewNegotiator(backend, nil, zerolog.Nop())

	res := n.Negotiate(context.Background(), domain.FacingFront, InitialTiers(false))
	require.True(t, res.OK())
	assert.Equal(t, "4k", res.Tier.Name)
	assert.Equal(t, []string{"4k"}, backend.tiersTried())
	assert.Equal(t, 1, backend.live())
}

func TestNegotiateFallsBackOnOverconstrained(t *testing.T) {
	backend := newFakeBackend()
	backend.fail["4k"] = failErr(domain.KindConstraintsUnsatisfiable)
	n := NewNegotiator(backend, nil, zerolog.Nop())

	res := n.Negotiate(context.Background(), domain.FacingFront, InitialTiers(false))
	require.True(t, res.OK())
	assert.Equal(t, "hd", res.Tier.Name)
	assert.Equal(t, []string{"4k", "hd"}, backend.tiersTried())
	assert.Equal(t, 1, backend.live())
}

func TestNegotiatePermissionDeniedIsTerminal(t *testing.T) {
	backend := newFakeBackend()
	backend.fail["4k"] = failErr(domain.KindPermissionDenied)
	n := NewNegotiator(backend, nil, zerolog.Nop())

	res := n.Negotiate(context.Background(), domain.FacingFront, InitialTiers(false))
	require.False(t, res.OK())
	assert.Equal(t, domain.KindPermissionDenied, res.Err.Kind)
	assert.Equal(t, []string{"4k"}, backend.tiersTried())
}

func TestNegotiateSurfacesLastFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.fail["4k"] = failErr(domain.KindConstraintsUnsatisfiable)
	backend.fail["hd"] = failErr(domain.KindConstraintsUnsatisfiable)
	backend.fail["unconstrained"] = failErr(domain.KindDeviceBusy)
	n := NewNegotiator(backend, nil, zerolog.Nop())

	res := n.Negotiate(context.Background(), domain.FacingFront, InitialTiers(false))
	require.False(t, res.OK())
	assert.Nil(t, res.Handle)
	assert.ErrorIs(t, res.Err, domain.ErrDeviceBusy)
	assert.Equal(t, 0, backend.live())
}

func TestNegotiatePreconditions(t *testing.T) {
	t.Run("no backend", func(t *testing.T) {
		res := NewNegotiator(nil, nil, zerolog.Nop()).Negotiate(context.Background(), domain.FacingFront, InitialTiers(false))
		require.False(t, res.OK())
		assert.Equal(t, domain.KindUnsupportedEnvironment, res.Err.Kind)
	})

	t.Run("no devices", func(t *testing.T) {
		backend := newFakeBackend()
		backend.devices = nil
		res := NewNegotiator(backend, nil, zerolog.Nop()).Negotiate(context.Background(), domain.FacingFront, InitialTiers(false))
		require.False(t, res.OK())
		assert.Equal(t, domain.KindDeviceNotFound, res.Err.Kind)
		assert.Empty(t, backend.tiersTried())
	})

	t.Run("no tiers", func(t *testing.T) {
		res := NewNegotiator(newFakeBackend(), nil, zerolog.Nop()).Negotiate(context.Background(), domain.FacingFront, nil)
		require.False(t, res.OK())
		assert.Equal(t, domain.KindConstraintsUnsatisfiable, res.Err.Kind)
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		backend := newFakeBackend()
		res := NewNegotiator(backend, nil, zerolog.Nop()).Negotiate(ctx, domain.FacingFront, InitialTiers(false))
		require.False(t, res.OK())
		assert.Empty(t, backend.tiersTried())
	})
}

func TestNegotiateExactTierNeedsKnownDevice(t *testing.T) {
	backend := newFakeBackend()
	backend.devices = []domain.VideoDevice{{ID: "usb", Label: "USB Camera"}}
	n := NewNegotiator(backend, nil, zerolog.Nop())

	res := n.Negotiate(context.Background(), domain.FacingBack, SwitchTiers(false))
	require.True(t, res.OK())
	assert.Equal(t, "relaxed", res.Tier.Name)
	assert.Equal(t, []string{"relaxed"}, backend.tiersTried(), "exact tiers are skipped without a back camera")
}

func TestNegotiateUsesPinnedDevice(t *testing.T) {
	backend := newFakeBackend()
	backend.devices = []domain.VideoDevice{{ID: "cam0", Label: "USB A"}, {ID: "cam1", Label: "USB B"}}
	n := NewNegotiator(backend, map[domain.FacingMode]string{domain.FacingBack: "cam1"}, zerolog.Nop())

	res := n.Negotiate(context.Background(), domain.FacingBack, SwitchTiers(false))
	require.True(t, res.OK())
	assert.Equal(t, "exact-4k", res.Tier.Name)
	require.Len(t, backend.opened, 1)
	assert.Equal(t, "cam1", backend.opened[0].DeviceID)
}

func TestTiers(t *testing.T) {
	for _, performance := range []bool{false, true} {
		initial := InitialTiers(performance)
		switched := SwitchTiers(performance)

		assert.True(t, initial[len(initial)-1].Unconstrained())
		assert.True(t, switched[len(switched)-1].Unconstrained())
		assert.Equal(t, domain.FacingExact, switched[0].Match)
		assert.Equal(t, domain.FacingExact, switched[1].Match)
		assert.Equal(t, domain.FacingIdeal, switched[2].Match)
	}
	assert.Equal(t, 3840, InitialTiers(false)[0].Width.Ideal)
	assert.Equal(t, 1920, InitialTiers(true)[0].Width.Ideal)
}
