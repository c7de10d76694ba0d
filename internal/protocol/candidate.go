package protocol

// Rect is an integer pixel rectangle in viewport coordinates.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// IsZero reports whether the rect has no area.
func (r Rect) IsZero() bool {
	return r.W == 0 || r.H == 0
}

// Center returns the integer center point of the rect.
func (r Rect) Center() Hit {
	return Hit{
		CX: r.X + (r.W+1)/2,
		CY: r.Y + (r.H+1)/2,
	}
}

// RectN is a viewport-normalized rectangle; all fields are in [0,1].
type RectN struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Normalize converts a pixel rect to viewport-relative coordinates.
func Normalize(r Rect, vw, vh int) RectN {
	if vw <= 0 || vh <= 0 {
		return RectN{}
	}
	return RectN{
		X: float64(r.X) / float64(vw),
		Y: float64(r.Y) / float64(vh),
		W: float64(r.W) / float64(vw),
		H: float64(r.H) / float64(vh),
	}
}

// Hit is the default click point for a candidate.
type Hit struct {
	CX int `json:"cx"`
	CY int `json:"cy"`
}

// State carries the boolean interaction state of a candidate.
type State struct {
	Disabled bool `json:"disabled"`
	Expanded bool `json:"expanded"`
	Checked  bool `json:"checked"`
	Selected bool `json:"selected"`
	Focused  bool `json:"focused"`
}

// Ctx carries structural ancestry flags for a candidate.
type Ctx struct {
	InModal bool   `json:"inModal"`
	InNav   bool   `json:"inNav"`
	InForm  bool   `json:"inForm"`
	Depth   int    `json:"depth"`
	FormID  string `json:"formId,omitempty"`
}

// StyleHint is a heuristic visual classification of a candidate.
type StyleHint struct {
	IsPrimary       bool   `json:"isPrimary"`
	IsDanger        bool   `json:"isDanger"`
	CursorPointer   bool   `json:"cursorPointer"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
}

// ActionCandidate is the unit of perception: one currently-interactive
// page element, identified stably for the lifetime of the element.
type ActionCandidate struct {
	ID          string    `json:"id"`
	Rect        Rect      `json:"rect"`
	RectN       RectN     `json:"rectN"`
	Hit         Hit       `json:"hit"`
	Role        string    `json:"role"`
	Tag         string    `json:"tag"`
	Name        string    `json:"name"`
	Aria        string    `json:"aria"`
	Placeholder string    `json:"placeholder,omitempty"`
	Value       string    `json:"value,omitempty"`
	Href        string    `json:"href,omitempty"`
	State       State     `json:"state"`
	Ctx         Ctx       `json:"ctx"`
	StyleHint   StyleHint `json:"styleHint"`
	Occluded    bool      `json:"occluded"`
}

// CandidateUpdate is one delta entry: the candidate id plus only the
// fields that changed since the previous emission.
type CandidateUpdate struct {
	ID       string  `json:"id"`
	Rect     *Rect   `json:"rect,omitempty"`
	RectN    *RectN  `json:"rectN,omitempty"`
	Hit      *Hit    `json:"hit,omitempty"`
	State    *State  `json:"state,omitempty"`
	Ctx      *Ctx    `json:"ctx,omitempty"`
	Name     *string `json:"name,omitempty"`
	Value    *string `json:"value,omitempty"`
	Occluded *bool   `json:"occluded,omitempty"`
}

// Apply merges the update into the candidate in place.
func (u CandidateUpdate) Apply(c *ActionCandidate) {
	if u.Rect != nil {
		c.Rect = *u.Rect
	}
	if u.RectN != nil {
		c.RectN = *u.RectN
	}
	if u.Hit != nil {
		c.Hit = *u.Hit
	}
	if u.State != nil {
		c.State = *u.State
	}
	if u.Ctx != nil {
		c.Ctx = *u.Ctx
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Value != nil {
		c.Value = *u.Value
	}
	if u.Occluded != nil {
		c.Occluded = *u.Occluded
	}
}

// Viewport is the page viewport size in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
