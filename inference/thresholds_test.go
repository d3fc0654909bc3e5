package inference

import (
	"sync"
	"testing"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholds_Defaults(t *testing.T) {
	th := NewThresholds()

	assert.Equal(t, float32(0.25), th.Confidence())
	assert.Equal(t, float32(0.45), th.IoU())
	assert.Equal(t, FeatureMap{
		FeatureConfidenceThreshold: 0.25,
		FeatureIoUThreshold:        0.45,
	}, th.Features())
}

func TestThresholds_Set(t *testing.T) {
	tests := []struct {
		name    string
		set     func(*Thresholds, float32) error
		get     func(*Thresholds) float32
		value   float32
		want    float32
		wantErr bool
	}{
		{name: "Confidence in range", set: (*Thresholds).SetConfidence, get: (*Thresholds).Confidence, value: 0.6, want: 0.6},
		{name: "Confidence lower bound", set: (*Thresholds).SetConfidence, get: (*Thresholds).Confidence, value: 0, want: 0},
		{name: "Confidence upper bound", set: (*Thresholds).SetConfidence, get: (*Thresholds).Confidence, value: 1, want: 1},
		{name: "Confidence negative", set: (*Thresholds).SetConfidence, get: (*Thresholds).Confidence, value: -0.1, want: 0.25, wantErr: true},
		{name: "Confidence above one", set: (*Thresholds).SetConfidence, get: (*Thresholds).Confidence, value: 1.5, want: 0.25, wantErr: true},
		{name: "Confidence NaN", set: (*Thresholds).SetConfidence, get: (*Thresholds).Confidence, value: math32.NaN(), want: 0.25, wantErr: true},
		{name: "IoU in range", set: (*Thresholds).SetIoU, get: (*Thresholds).IoU, value: 0.7, want: 0.7},
		{name: "IoU above one", set: (*Thresholds).SetIoU, get: (*Thresholds).IoU, value: 2, want: 0.45, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := NewThresholds()
			err := tt.set(th, tt.value)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrThresholdOutOfRange))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, tt.get(th))
		})
	}
}

func TestThresholds_OnPublish(t *testing.T) {
	th := NewThresholds()

	var published []FeatureMap
	th.OnPublish(func(f FeatureMap) { published = append(published, f) })

	require.NoError(t, th.SetConfidence(0.5))
	require.NoError(t, th.SetIoU(0.3))
	require.Error(t, th.SetIoU(-1))

	require.Len(t, published, 2)
	assert.Equal(t, float32(0.5), published[0].Confidence())
	assert.Equal(t, float32(0.45), published[0].IoU())
	assert.Equal(t, float32(0.5), published[1].Confidence())
	assert.Equal(t, float32(0.3), published[1].IoU())

	// Listeners get their own copy.
	published[1][FeatureIoUThreshold] = 0.9
	assert.Equal(t, float32(0.3), th.Features().IoU())
}

func TestThresholds_Concurrent(t *testing.T) {
	th := NewThresholds()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v float32) {
			defer wg.Done()
			_ = th.SetConfidence(v)
		}(float32(i) / 50)
		go func() {
			defer wg.Done()
			f := th.Features()
			assert.Len(t, f, 2)
		}()
	}
	wg.Wait()

	c := th.Confidence()
	assert.GreaterOrEqual(t, c, float32(0))
	assert.Less(t, c, float32(1))
}

func TestThresholds_LastPublishMatchesFeatures(t *testing.T) {
	for round := 0; round < 200; round++ {
		th := NewThresholds()

		var (
			mu   sync.Mutex
			last FeatureMap
		)
		th.OnPublish(func(f FeatureMap) {
			mu.Lock()
			last = f
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v := float32(i) / 10
				if i%2 == 0 {
					assert.NoError(t, th.SetConfidence(v))
				} else {
					assert.NoError(t, th.SetIoU(v))
				}
			}(i)
		}
		wg.Wait()

		mu.Lock()
		require.Equal(t, th.Features(), last, "round %d", round)
		mu.Unlock()
	}
}
