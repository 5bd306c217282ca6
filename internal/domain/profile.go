package domain

// Profile is the display decoration for a tray entry. A missing profile
// degrades to zero values, it never fails the aggregation.
type Profile struct {
	ID          string
	DisplayName string
	AvatarURL   string
}
