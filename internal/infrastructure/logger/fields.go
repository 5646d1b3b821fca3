package logger

// Стандартные имена полей.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldEvent     = "event"

	FieldFacing     = "facing"
	FieldTier       = "tier"
	FieldDevice     = "device"
	FieldHandle     = "handle"
	FieldTransform  = "transform"
	FieldResolution = "resolution"
	FieldFPS        = "fps"

	FieldKind     = "kind"
	FieldOp       = "op"
	FieldBytes    = "bytes"
	FieldChunks   = "chunks"
	FieldArtifact = "artifact"
	FieldPath     = "path"
	FieldState    = "state"
)
