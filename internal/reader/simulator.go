package reader

import "sync"

// Simulator is an in-memory reader used by tests and by demo setups
// without hardware. Cards are seeded with a balance and an onboard log.
type Simulator struct {
	mu        sync.Mutex
	presented string
	balances  map[string]*int64
	histories map[string][]Transaction
	failReads bool
}

func NewSimulator() *Simulator {
	return &Simulator{
		balances:  make(map[string]*int64),
		histories: make(map[string][]Transaction),
	}
}

// Present puts a card on the simulated reader.
func (s *Simulator) Present(idm string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented = idm
}

// SeedCard sets the balance and onboard log (newest-first) for a card.
func (s *Simulator) SeedCard(idm string, balance *int64, history []Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[idm] = balance
	s.histories[idm] = history
}

// FailReads makes every subsequent read return ErrReadFailed.
func (s *Simulator) FailReads(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = fail
}

func (s *Simulator) ReadIDm() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return "", ErrReadFailed
	}
	if s.presented == "" {
		return "", ErrNoCard
	}
	return s.presented, nil
}

func (s *Simulator) ReadBalance(idm string) (*int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, ErrReadFailed
	}
	return s.balances[idm], nil
}

func (s *Simulator) ReadHistory(idm string) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads {
		return nil, ErrReadFailed
	}
	history := make([]Transaction, len(s.histories[idm]))
	copy(history, s.histories[idm])
	return history, nil
}
