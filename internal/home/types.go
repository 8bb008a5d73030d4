package home

// Home represents a managed property. A deployment usually has one,
// but nothing prevents several.
type Home struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Timezone *string `json:"timezone"`
}

// Room represents a physical space within a home.
//
// Home is populated on reads so API consumers get the parent inline;
// it is not written back.
type Room struct {
	ID     int64   `json:"id"`
	HomeID int64   `json:"homeId"`
	Name   string  `json:"name"`
	Floor  *string `json:"floor"`
	Home   *Home   `json:"home,omitempty"`
}
