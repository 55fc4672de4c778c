package identity

import "sync"

// Stream 单会话可观察主体流，订阅者总能拿到最新主体
type Stream struct {
	mu      sync.RWMutex
	current Subject
	nextID  int
	subs    map[int]chan Subject
}

// NewStream 创建主体流
func NewStream(initial Subject) *Stream {
	return &Stream{
		current: initial.Normalize(),
		subs:    make(map[int]chan Subject),
	}
}

// Current 返回当前主体
func (s *Stream) Current() Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe 订阅主体变化，返回的通道会先收到当前主体
func (s *Stream) Subscribe() (<-chan Subject, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Subject, 1)
	ch <- s.current
	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish 发布新主体；慢订阅者只保留最新值
func (s *Stream) Publish(subject Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = subject.Normalize()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.current
	}
}

// Close 关闭所有订阅
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
