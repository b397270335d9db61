package room

import (
	"math/rand"
	"sync"
	"time"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength   = 4
)

// CodeGenerator draws room codes uniformly from codeAlphabet.
type CodeGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCodeGenerator constructs a CodeGenerator with its own seed.
func NewCodeGenerator() *CodeGenerator {
	return NewSeededCodeGenerator(time.Now().UnixNano())
}

// NewSeededCodeGenerator constructs a deterministic CodeGenerator.
func NewSeededCodeGenerator(seed int64) *CodeGenerator {
	return &CodeGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Next returns a random candidate code. Uniqueness is checked by the Store.
func (g *CodeGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[g.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}
