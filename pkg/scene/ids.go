package scene

// TransformID identifies a transform node in the compositor's graph.
// Zero is never allocated.
type TransformID uint64

// ContentID identifies an image or viewport in the compositor's graph.
// Zero means "no content".
type ContentID uint64

// IDSource allocates compositor identifiers. Identifiers are never reused
// by the allocator itself.
type IDSource interface {
	NextTransformID() TransformID
	NextContentID() ContentID
}
