package timesync

import "sync"

// Store holds the latest PlaybackState. Only a Policy writes to it; any
// number of subscribers read. Subscribers that fall behind only ever see the
// most recent state.
type Store struct {
	mu     sync.Mutex
	state  PlaybackState
	nextID int
	subs   map[int]chan PlaybackState
}

func NewStore() *Store {
	return &Store{subs: make(map[int]chan PlaybackState)}
}

func (s *Store) Get() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel that immediately yields the current state and
// then every subsequent write. The returned cancel func closes the channel.
func (s *Store) Subscribe() (<-chan PlaybackState, func()) {
	ch := make(chan PlaybackState, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Store) set(state PlaybackState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

// report records the latest raw sample without notifying subscribers.
func (s *Store) report(raw float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastReportedSeconds = raw
}
