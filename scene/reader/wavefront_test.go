package reader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	scenePkg "github.com/borealis-render/borealis/scene"
	"github.com/borealis-render/borealis/types"
)

func TestReadSceneFromWavefrontFile(t *testing.T) {
	sceneDir := t.TempDir()

	writeTestFile(t, filepath.Join(sceneDir, "scene.mtl"), `
# test materials
newmtl light
Kd 0.0 0.0 0.0
Ke 5.0 5.0 5.0

newmtl glass
Kd 0.9 0.9 0.9
Ni 1.52

newmtl mirror
Kd 0.95 0.95 0.95
illum 5
`)

	pathToScene := filepath.Join(sceneDir, "scene.obj")
	writeTestFile(t, pathToScene, `
mtllib scene.mtl
camera_fov 60.0
camera_eye 0 1 5
camera_look 0 0 0
camera_up 0 1 0

v -1 0 0
v 1 0 0
v 1 1 0
v -1 1 0
vn 0 0 1
vt 0 0
vt 1 0
vt 1 1
vt 0 1

usemtl light
f 1/1/1 2/2/1 3/3/1 4/4/1
`)

	sc, err := ReadScene(pathToScene)
	if err != nil {
		t.Fatalf("failed to read scene: %v", err)
	}

	if len(sc.Materials) != 3 {
		t.Fatalf("expected 3 materials; got %d", len(sc.Materials))
	}
	light := sc.Materials[0]
	if light.Name != "light" || light.Type != scenePkg.EmissiveMaterial {
		t.Fatalf("expected first material to be an emissive 'light'; got %q of type %d", light.Name, light.Type)
	}
	glass := sc.Materials[1]
	if glass.Type != scenePkg.RefractiveMaterial || glass.IOR != 1.52 {
		t.Fatalf("expected 'glass' to be refractive with IOR 1.52; got type %d, IOR %f", glass.Type, glass.IOR)
	}
	mirror := sc.Materials[2]
	if mirror.Type != scenePkg.SpecularMaterial {
		t.Fatalf("expected 'mirror' to be specular due to its illum mode; got type %d", mirror.Type)
	}

	// The quad face should be fan-triangulated into 2 triangles.
	if len(sc.Primitives) != 2 {
		t.Fatalf("expected 2 triangles; got %d primitives", len(sc.Primitives))
	}
	for idx, prim := range sc.Primitives {
		if prim.Material() != light {
			t.Fatalf("expected primitive %d to use the active 'light' material", idx)
		}
	}

	if sc.Camera == nil {
		t.Fatal("expected a camera to be attached to the scene")
	}
	if sc.Camera.FOV != 60 {
		t.Fatalf("expected camera FOV of 60; got %f", sc.Camera.FOV)
	}
	if sc.Camera.Position != (types.Vec3{0, 1, 5}) {
		t.Fatalf("unexpected camera position: %v", sc.Camera.Position)
	}
}

func TestFaceWithNegativeIndicesAndDefaultMaterial(t *testing.T) {
	pathToScene := filepath.Join(t.TempDir(), "tri.obj")
	writeTestFile(t, pathToScene, `
v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`)

	sc, err := ReadScene(pathToScene)
	if err != nil {
		t.Fatalf("failed to read scene: %v", err)
	}

	if len(sc.Primitives) != 1 {
		t.Fatalf("expected 1 triangle; got %d primitives", len(sc.Primitives))
	}
	if len(sc.Materials) != 1 {
		t.Fatalf("expected the default material to be allocated; got %d materials", len(sc.Materials))
	}
	mat := sc.Primitives[0].Material()
	if mat.Type != scenePkg.DiffuseMaterial || mat.Diffuse != (types.Vec3{0.7, 0.7, 0.7}) {
		t.Fatalf("expected the gray default material; got type %d, diffuse %v", mat.Type, mat.Diffuse)
	}
}

func TestReadSceneErrors(t *testing.T) {
	if _, err := ReadScene(filepath.Join(t.TempDir(), "missing.obj")); err == nil {
		t.Fatal("expected an error for a missing scene file")
	}

	specs := []struct {
		name     string
		payload  string
		expError string
	}{
		{
			"undefined material",
			"usemtl nope\n",
			"undefined material",
		},
		{
			"vertex index out of bounds",
			"v 0 0 0\nf 1 2 3\n",
			"index out of bounds",
		},
		{
			"missing mtllib",
			"mtllib missing.mtl\n",
			"missing.mtl",
		},
		{
			"malformed vertex",
			"v 0 0\n",
			"expected 3 arguments",
		},
	}

	for _, spec := range specs {
		pathToScene := filepath.Join(t.TempDir(), "bad.obj")
		writeTestFile(t, pathToScene, spec.payload)

		_, err := ReadScene(pathToScene)
		if err == nil {
			t.Fatalf("[%s] expected a parse error", spec.name)
		}
		if !strings.Contains(err.Error(), spec.expError) {
			t.Fatalf("[%s] expected error to mention %q; got: %v", spec.name, spec.expError, err)
		}
	}
}

func writeTestFile(t *testing.T, pathToFile, payload string) {
	t.Helper()
	if err := os.WriteFile(pathToFile, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
}
