package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAngleToSteps(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
		dps   float64
		home  float64
		want  int
	}{
		{"at home", 180, 0.01, 180, 0},
		{"below home", 90, 0.01, 180, 9000},
		{"above home", 270, 0.01, 180, -9000},
		{"fractional rounds", 179.996, 0.01, 180, 0},
		{"fractional rounds up", 179.994, 0.01, 180, 1},
		{"shadowband", -36, 0.36, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AngleToSteps(tt.angle, tt.dps, tt.home)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAngleStepsRoundTrip(t *testing.T) {
	require := require.New(t)

	for steps := -5000; steps <= 5000; steps += 37 {
		angle, err := StepsToAngle(steps, 0.01, 180)
		require.NoError(err)

		back, err := AngleToSteps(angle, 0.01, 180)
		require.NoError(err)
		require.Equal(steps, back)
	}

	for angle := -170.0; angle <= 170; angle += 3.3 {
		steps, err := AngleToSteps(angle, 0.36, 10)
		require.NoError(err)

		back, err := StepsToAngle(steps, 0.36, 10)
		require.NoError(err)
		require.InDelta(angle, back, 0.36/2+1e-9)
	}
}

func TestAngleInvalidResolution(t *testing.T) {
	_, err := AngleToSteps(10, 0, 0)
	require.ErrorIs(t, err, ErrInvalidResolution)

	_, err = StepsToAngle(10, -1, 0)
	require.ErrorIs(t, err, ErrInvalidResolution)
}

func TestNormalizeAzimuth(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(0, NormalizeAzimuth(0), 1e-12)
	assert.InDelta(0, NormalizeAzimuth(360), 1e-12)
	assert.InDelta(350, NormalizeAzimuth(-10), 1e-12)
	assert.InDelta(10, NormalizeAzimuth(730), 1e-12)
	assert.InDelta(0, NormalizeAzimuth(-1e-15), 1e-12)

	for a := -1000.0; a < 1000; a += 7.7 {
		n := NormalizeAzimuth(a)
		assert.GreaterOrEqual(n, 0.0)
		assert.Less(n, 360.0)
	}
}

func TestWrapAngle(t *testing.T) {
	assert := assert.New(t)

	assert.InDelta(-160, WrapAngle(200), 1e-12)
	assert.InDelta(160, WrapAngle(-200), 1e-12)
	assert.InDelta(180, WrapAngle(180), 1e-12)
	assert.InDelta(10, WrapAngle(370), 1e-12)
}
