package timeline

// TrackedEntity is the registry's live record for one entity.
type TrackedEntity struct {
	ID         uint64
	TypeLabel  string
	Owner      int
	Pos        Vec2
	Vel        Vec2
	Stationary bool
	LastUpdate float64

	seq int // index into Registry.order
}

type CreateResult int

const (
	CreateOK CreateResult = iota + 1
	CreateRejected
	CreateDuplicate
)

// Registry owns the active entities of one reconstruction. It is not safe for
// concurrent use; the builder is its only writer and reader.
type Registry struct {
	classifier *Classifier
	velEps     float64

	byID  map[uint64]*TrackedEntity
	order []*TrackedEntity // creation order; nil slots are destroyed entries
	dead  int
}

// NewRegistry returns an empty registry. A nil classifier accepts every
// label as mobile.
func NewRegistry(c *Classifier, velocityEpsilon float64) *Registry {
	if c == nil {
		c = NewClassifier(nil, nil)
	}
	return &Registry{
		classifier: c,
		velEps:     velocityEpsilon,
		byID:       map[uint64]*TrackedEntity{},
	}
}

func (r *Registry) Len() int { return len(r.byID) }

// Create registers a new entity. The first creation of an id wins; a second
// one while the entity is alive is dropped.
func (r *Registry) Create(id uint64, label string, owner int, pos Vec2, t float64) CreateResult {
	cls := r.classifier.Classify(label)
	if !cls.Accepted {
		return CreateRejected
	}
	if _, ok := r.byID[id]; ok {
		return CreateDuplicate
	}
	e := &TrackedEntity{
		ID:         id,
		TypeLabel:  label,
		Owner:      owner,
		Pos:        pos,
		Stationary: cls.Stationary,
		LastUpdate: t,
		seq:        len(r.order),
	}
	r.byID[id] = e
	r.order = append(r.order, e)
	return CreateOK
}

// UpdatePosition moves a live entity and refreshes its velocity estimate.
// It reports false when id is not active.
func (r *Registry) UpdatePosition(id uint64, pos Vec2, t float64) bool {
	e, ok := r.byID[id]
	if !ok {
		return false
	}
	e.Vel = EstimateVelocity(e.Pos, e.LastUpdate, pos, t, e.Vel, r.velEps)
	e.Pos = pos
	e.LastUpdate = t
	return true
}

// Destroy removes id. It reports false when id is not active.
func (r *Registry) Destroy(id uint64) bool {
	e, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	r.order[e.seq] = nil
	r.dead++
	if r.dead > 64 && r.dead*2 > len(r.order) {
		r.compact()
	}
	return true
}

// Get returns a copy of the entity's current state.
func (r *Registry) Get(id uint64) (TrackedEntity, bool) {
	e, ok := r.byID[id]
	if !ok {
		return TrackedEntity{}, false
	}
	return *e, true
}

// Each visits active entities in creation order.
func (r *Registry) Each(fn func(e *TrackedEntity)) {
	for _, e := range r.order {
		if e != nil {
			fn(e)
		}
	}
}

func (r *Registry) compact() {
	live := r.order[:0]
	for _, e := range r.order {
		if e == nil {
			continue
		}
		e.seq = len(live)
		live = append(live, e)
	}
	for i := len(live); i < len(r.order); i++ {
		r.order[i] = nil
	}
	r.order = live
	r.dead = 0
}
