package component

// Component kinds as registered with the ECS registry.
const (
	KindName      = "name"
	KindTransform = "transform"
	KindHealth    = "health"
	KindTags      = "tags"
)

// Name is the display name of a game object.
type Name struct {
	Value string
}

// Transform places a game object on the map.
type Transform struct {
	X       int32
	Y       int32
	MapID   int16
	Heading int16 // 0-7, clockwise from north
}

// Health stores hit points. Pure data, zero methods.
type Health struct {
	HP    int16
	MaxHP int16
}

// Tags stores free-form labels used by editor filters.
type Tags struct {
	Values []string
}
