package simpleasset

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	id := uuid.New()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(id)
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_LockAllDeduplicates(t *testing.T) {
	k := newKeyedMutex()
	a, b := uuid.New(), uuid.New()

	unlock := k.LockAll([]uuid.UUID{b, a, b})
	assert.Equal(t, 2, k.size())
	unlock()
	assert.Equal(t, 0, k.size())

	// independent keys do not block each other
	unlockA := k.Lock(a)
	unlockB := k.Lock(b)
	unlockB()
	unlockA()
}
