package scene

import "github.com/borealis-render/borealis/types"

type MaterialType uint8

const (
	DiffuseMaterial MaterialType = iota
	SpecularMaterial
	RefractiveMaterial
	EmissiveMaterial
)

// Defines a scene material.
type Material struct {
	// The material name. Populated by scene readers.
	Name string

	// The type of the material.
	Type MaterialType

	// Diffuse color.
	Diffuse types.Vec3

	// Emissive color (if material is light).
	Emissive types.Vec3

	// Index of refraction (refractive materials only)
	IOR float32
}
