package results

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-exam-console/internal/models"
)

func TestImageHandleReleaseWhileReading(t *testing.T) {
	var registry ImageRegistry
	handle := registry.Acquire(models.EvidenceKindFace, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	require.Equal(t, 1, registry.Live())

	var torn atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 100; j++ {
				if data := handle.Bytes(); data != nil && len(data) != 8 {
					torn.Add(1)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		handle.Release()
		handle.Release()
	}()
	close(start)
	wg.Wait()

	require.Zero(t, torn.Load())
	require.Nil(t, handle.Bytes())
	require.Zero(t, registry.Live())
}

func TestImageHandleNilIsSafe(t *testing.T) {
	var handle *ImageHandle
	require.Nil(t, handle.Bytes())
	handle.Release()
}
