package ai

// Player is the public slice of a profile an intro may mention.
type Player struct {
	Name   string   `json:"name"`
	Age    *int     `json:"age,omitempty"`
	Rating *float64 `json:"dupr_rating,omitempty"`
}

// introResult is the JSON object the model is asked to return.
type introResult struct {
	Intro string `json:"intro"`
}
