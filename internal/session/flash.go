package session

// FlashKey holds pending one-time notices.
const FlashKey = "_flashes"

// Flash is a one-time notice shown on the next page the browser loads.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// AddFlash appends a notice to the session.
func AddFlash(s *Session, category, message string) error {
	var flashes []Flash
	if _, err := s.Get(FlashKey, &flashes); err != nil {
		flashes = nil
	}
	flashes = append(flashes, Flash{Category: category, Message: message})
	return s.Set(FlashKey, flashes)
}

// PopFlashes returns and removes all pending notices.
func PopFlashes(s *Session) []Flash {
	var flashes []Flash
	if _, err := s.Pop(FlashKey, &flashes); err != nil {
		return nil
	}
	return flashes
}
