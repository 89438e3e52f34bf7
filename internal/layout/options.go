package layout

// Options tunes the force simulation. Zero fields take the defaults.
type Options struct {
	Iterations      int     // default 300
	Repulsion       float64 // default 120000, force = Repulsion/d²
	SpringLength    float64 // default 300
	SpringStiffness float64 // default 0.03
	Centering       float64 // default 0.005
	Damping         float64 // default 0.6

	CollisionPasses int     // default 5 per iteration
	PaddingX        float64 // default 30
	PaddingY        float64 // default 20

	// SettlePasses bounds the collision and clamp passes run after the last
	// iteration until the frame is overlap free.
	SettlePasses int // default 200

	Jitter   float64 // default 50, half-width of the initial scatter
	MaxNodes int     // default 500

	// MaxDensity is the largest share of the canvas the padded node boxes
	// may cover before Layout grows the canvas.
	MaxDensity float64 // default 0.35
}

// DefaultOptions returns the stock simulation parameters.
func DefaultOptions() Options {
	return Options{
		Iterations:      300,
		Repulsion:       120000,
		SpringLength:    300,
		SpringStiffness: 0.03,
		Centering:       0.005,
		Damping:         0.6,
		CollisionPasses: 5,
		PaddingX:        30,
		PaddingY:        20,
		SettlePasses:    200,
		Jitter:          50,
		MaxNodes:        500,
		MaxDensity:      0.35,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Iterations > 0 {
		d.Iterations = o.Iterations
	}
	if o.Repulsion > 0 {
		d.Repulsion = o.Repulsion
	}
	if o.SpringLength > 0 {
		d.SpringLength = o.SpringLength
	}
	if o.SpringStiffness > 0 {
		d.SpringStiffness = o.SpringStiffness
	}
	if o.Centering > 0 {
		d.Centering = o.Centering
	}
	if o.Damping > 0 {
		d.Damping = o.Damping
	}
	if o.CollisionPasses > 0 {
		d.CollisionPasses = o.CollisionPasses
	}
	if o.PaddingX > 0 {
		d.PaddingX = o.PaddingX
	}
	if o.PaddingY > 0 {
		d.PaddingY = o.PaddingY
	}
	if o.SettlePasses > 0 {
		d.SettlePasses = o.SettlePasses
	}
	if o.Jitter > 0 {
		d.Jitter = o.Jitter
	}
	if o.MaxNodes > 0 {
		d.MaxNodes = o.MaxNodes
	}
	if o.MaxDensity > 0 && o.MaxDensity <= 1 {
		d.MaxDensity = o.MaxDensity
	}
	return d
}
