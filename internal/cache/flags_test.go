package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagAliases_Resolve(t *testing.T) {
	c := NewFlagAliases()
	c.Add("Kavala Castle", "Alpha", "")
	c.Add("Pyrgos")

	tests := []struct {
		input string
		want  string
		found bool
	}{
		{"Kavala Castle", "Kavala Castle", true},
		{"kavala castle", "Kavala Castle", true},
		{"ALPHA", "Kavala Castle", true},
		{" Alpha ", "Kavala Castle", true},
		{"Pyrgos", "Pyrgos", true},
		{"", "", false},
		{"Sofia", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := c.Resolve(tt.input)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlagAliases_Reset(t *testing.T) {
	c := NewFlagAliases()
	c.Add("Pyrgos", "Bravo")
	c.Reset()

	_, ok := c.Resolve("Bravo")
	assert.False(t, ok)
}

func TestFlagAliases_ConcurrentAccess(t *testing.T) {
	c := NewFlagAliases()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Add("Kavala", "Alpha")
		}()
		go func() {
			defer wg.Done()
			c.Resolve("alpha")
		}()
	}
	wg.Wait()

	name, ok := c.Resolve("alpha")
	require.True(t, ok)
	assert.Equal(t, "Kavala", name)
}
