package models

// Channel is one row of the channel directory, unique on (ChannelNumber, Genre).
// Genre holds the feed name shown as the channel's primary label; Title is the
// upstream subcategory shown beneath it.
type Channel struct {
	ChannelNumber string  `json:"channel_number"`
	Title         string  `json:"title"`
	Genre         string  `json:"genre"`
	Category      *string `json:"category"`
}

// CategoryName returns the channel's category or "" when unset.
func (c Channel) CategoryName() string {
	if c.Category == nil {
		return ""
	}
	return *c.Category
}

// Key returns the uniqueness key used for upserts.
func (c Channel) Key() ChannelKey {
	return ChannelKey{ChannelNumber: c.ChannelNumber, Genre: c.Genre}
}

// ChannelKey identifies a channel row.
type ChannelKey struct {
	ChannelNumber string
	Genre         string
}
