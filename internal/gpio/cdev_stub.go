//go:build !linux && !tinygo

package gpio

// CdevProvider is not available on non-Linux platforms. Every pin it returns
// reports not ready.
type CdevProvider struct{}

// NewCdevProvider returns a provider whose pins are never ready.
func NewCdevProvider() *CdevProvider {
	return &CdevProvider{}
}

func (p *CdevProvider) Pin(l Line) Pin {
	return unsupportedPin{name: l.Name}
}

func (p *CdevProvider) Close() error {
	return nil
}

type unsupportedPin struct{ name string }

func (u unsupportedPin) Name() string                            { return u.name }
func (u unsupportedPin) IsReady() bool                           { return false }
func (u unsupportedPin) ConfigureOutput(Level) error             { return ErrNotSupported }
func (u unsupportedPin) ConfigureInput() error                   { return ErrNotSupported }
func (u unsupportedPin) EnableEdgeNotification(Edge) error       { return ErrNotSupported }
func (u unsupportedPin) Read() (Level, error)                    { return Deasserted, ErrNotSupported }
func (u unsupportedPin) Set(Level) error                         { return ErrNotSupported }
func (u unsupportedPin) Subscribe(Handler) (Subscription, error) { return nil, ErrNotSupported }
