package domain

type RoomName string

// DefaultRoom is where a connection lands when the join request carries
// no room.
const DefaultRoom RoomName = "default"
