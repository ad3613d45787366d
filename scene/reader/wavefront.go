package reader

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/borealis-render/borealis/log"
	scenePkg "github.com/borealis-render/borealis/scene"
	"github.com/borealis-render/borealis/types"
)

type wavefrontSceneReader struct {
	logger log.Logger

	// The scene being assembled.
	sc *scenePkg.Scene

	// A map of material names to entries in the scene material list.
	matNameToIndex map[string]int

	// Currently selected material index
	curMaterial int

	// List of vertices, normals and uv coords.
	vertexList []types.Vec3
	normalList []types.Vec3
	uvList     []types.Vec2

	// Parsed camera settings.
	cameraFOV  float32
	cameraEye  types.Vec3
	cameraLook types.Vec3
	cameraUp   types.Vec3

	// An error stack that provides additional error information when
	// scene files include other files (mat libs e.t.c)
	errStack []string
}

// Create a new wavefront scene reader.
func newWavefrontReader() *wavefrontSceneReader {
	return &wavefrontSceneReader{
		logger:         log.New("wavefrontSceneReader"),
		sc:             scenePkg.NewScene(),
		matNameToIndex: make(map[string]int, 0),
		curMaterial:    -1,
		vertexList:     make([]types.Vec3, 0),
		normalList:     make([]types.Vec3, 0),
		uvList:         make([]types.Vec2, 0),
		errStack:       make([]string, 0),
		cameraFOV:      45.0,
		cameraEye:      types.Vec3{0, 0, 0},
		cameraLook:     types.Vec3{0, 0, -1},
		cameraUp:       types.Vec3{0, 1, 0},
	}
}

// Read a scene definition from a wavefront obj file. Material libraries
// referenced via mtllib are resolved relative to the scene file and may be
// remote http/https resources.
func ReadScene(pathToFile string) (*scenePkg.Scene, error) {
	res, err := newResource(pathToFile, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return newWavefrontReader().Read(res)
}

// Read scene definition.
func (r *wavefrontSceneReader) Read(sceneRes *resource) (*scenePkg.Scene, error) {
	r.logger.Infof("parsing scene from %s", sceneRes.Path())
	start := time.Now()

	if err := r.parse(sceneRes); err != nil {
		return nil, err
	}

	camera := scenePkg.NewCamera(r.cameraFOV)
	camera.Position = r.cameraEye
	camera.LookAt = r.cameraLook
	camera.Up = r.cameraUp
	r.sc.SetCamera(camera)

	r.logger.Infof(
		"parsed scene in %d ms: %d primitives, %d materials",
		time.Since(start).Nanoseconds()/1e6,
		len(r.sc.Primitives), len(r.sc.Materials),
	)
	return r.sc, nil
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontSceneReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)

	var errMsg string
	if file != "" {
		errMsg = strings.Trim(
			fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n")),
			"\n",
		)
	} else {
		errMsg = strings.Trim(
			fmt.Sprintf("error: %s\n%s", msg, strings.Join(r.errStack, "\n")),
			"\n",
		)
	}

	return fmt.Errorf("%s", errMsg)
}

// Push a frame to the error stack.
func (r *wavefrontSceneReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

// Pop a frame from the error stack.
func (r *wavefrontSceneReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Create and select a default material for surfaces not using one.
func (r *wavefrontSceneReader) defaultMaterial() int {
	matIndex, exists := r.matNameToIndex[""]
	if !exists {
		mat := &scenePkg.Material{
			Type:    scenePkg.DiffuseMaterial,
			Diffuse: types.Vec3{0.7, 0.7, 0.7},
		}
		r.sc.AddMaterial(mat)
		matIndex = len(r.sc.Materials) - 1
		r.matNameToIndex[""] = matIndex
	}
	r.curMaterial = matIndex
	return r.curMaterial
}

// Parse wavefront object scene format.
func (r *wavefrontSceneReader) parse(res *resource) error {
	var lineNum int = 0
	var err error

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 {
			continue
		}

		switch lineTokens[0] {
		case "#":
			continue
		case "mtllib":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for 'mtllib'; expected 1 argument; got %d", len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [mtllib]", res.Path(), lineNum))

			incRes, err := newResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}

			err = r.parseMaterials(incRes)
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for 'usemtl'; expected 1 argument; got %d", len(lineTokens)-1)
			}

			// Lookup material
			matName := lineTokens[1]
			matIndex, exists := r.matNameToIndex[matName]
			if !exists {
				return r.emitError(res.Path(), lineNum, "undefined material with name '%s'", matName)
			}

			// Activate material
			r.curMaterial = matIndex
		case "v":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.vertexList = append(r.vertexList, v)
		case "vn":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.normalList = append(r.normalList, v)
		case "vt":
			v, err := parseVec2(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.uvList = append(r.uvList, v)
		case "f":
			if err = r.parseFace(lineTokens); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "camera_fov":
			r.cameraFOV, err = parseFloat32(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "camera_eye":
			r.cameraEye, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "camera_look":
			r.cameraLook, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "camera_up":
			r.cameraUp, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		}
	}

	return scanner.Err()
}

// Parse face definition. Each vertex argument is comprised of 1, 2 or 3
// indices separated by a slash character. The following formats are
// supported:
// - vertexIndex
// - vertexIndex/uvIndex
// - vertexIndex//normalIndex
// - vertexIndex/uvIndex/normalIndex
//
// Indices start from 1 and may be negative to indicate an offset off the end
// of the vertex/uv/normal list.
//
// Faces with more than 3 vertices are triangulated as a fan around the first
// vertex.
func (r *wavefrontSceneReader) parseFace(lineTokens []string) error {
	if len(lineTokens) < 4 {
		return fmt.Errorf("unsupported syntax for 'f'; expected at least 3 arguments; got %d", len(lineTokens)-1)
	}

	vertCount := len(lineTokens) - 1
	vertices := make([]types.Vec3, vertCount)
	normals := make([]types.Vec3, vertCount)
	uv := make([]types.Vec2, vertCount)
	hasNormals := false

	for arg := 0; arg < vertCount; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")

		// Faces must at least define a vertex coord
		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		offset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList))
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}
		vertices[arg] = r.vertexList[offset]

		// Parse UV coords if specified
		if len(vTokens) > 1 && vTokens[1] != "" {
			offset, err = selectFaceCoordIndex(vTokens[1], len(r.uvList))
			if err != nil {
				return fmt.Errorf("could not parse tex coord for face argument %d: %s", arg, err.Error())
			}
			uv[arg] = r.uvList[offset]
		}

		// Parse normal coords if specified
		if len(vTokens) > 2 && vTokens[2] != "" {
			offset, err = selectFaceCoordIndex(vTokens[2], len(r.normalList))
			if err != nil {
				return fmt.Errorf("could not parse normal coord for face argument %d: %s", arg, err.Error())
			}
			normals[arg] = r.normalList[offset]
			hasNormals = true
		}
	}

	// If no material defined select the default
	if r.curMaterial < 0 {
		r.curMaterial = r.defaultMaterial()
	}
	material := r.sc.Materials[r.curMaterial]

	// Fan triangulation around the first vertex.
	for i := 1; i < vertCount-1; i++ {
		triVerts := [3]types.Vec3{vertices[0], vertices[i], vertices[i+1]}
		triUV := [3]types.Vec2{uv[0], uv[i], uv[i+1]}

		var triNormals *[3]types.Vec3
		if hasNormals {
			triNormals = &[3]types.Vec3{normals[0], normals[i], normals[i+1]}
		}

		if err := r.sc.AddPrimitive(scenePkg.NewTriangle(triVerts, triNormals, triUV, material)); err != nil {
			return err
		}
	}
	return nil
}

// Parse a wavefront material library.
func (r *wavefrontSceneReader) parseMaterials(res *resource) error {
	var lineNum int = 0
	var err error

	scanner := bufio.NewScanner(res)

	var curMaterial *scenePkg.Material = nil

	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 {
			continue
		}

		switch lineTokens[0] {
		case "#":
			continue
		case "newmtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for 'newmtl'; expected 1 argument; got %d", len(lineTokens)-1)
			}

			matName := lineTokens[1]
			if _, exists := r.matNameToIndex[matName]; exists {
				return r.emitError(res.Path(), lineNum, "material '%s' already defined", matName)
			}

			// Allocate new material and add it to the library
			curMaterial = &scenePkg.Material{Name: matName, Type: scenePkg.DiffuseMaterial}
			r.sc.AddMaterial(curMaterial)
			r.matNameToIndex[matName] = len(r.sc.Materials) - 1
		case "Kd", "Ke", "Ni", "illum":
			if curMaterial == nil {
				return r.emitError(res.Path(), lineNum, "got '%s' without a 'newmtl'", lineTokens[0])
			}

			switch lineTokens[0] {
			case "Kd":
				curMaterial.Diffuse, err = parseVec3(lineTokens)
			case "Ke":
				curMaterial.Emissive, err = parseVec3(lineTokens)
				if err == nil && curMaterial.Emissive.MaxComponent() > 0 {
					curMaterial.Type = scenePkg.EmissiveMaterial
				}
			case "Ni":
				curMaterial.IOR, err = parseFloat32(lineTokens)
				if err == nil && curMaterial.IOR > 1 && curMaterial.Type == scenePkg.DiffuseMaterial {
					curMaterial.Type = scenePkg.RefractiveMaterial
				}
			case "illum":
				// Illumination modes 3+ enable raytraced reflections;
				// treat those surfaces as mirrors.
				var mode float32
				mode, err = parseFloat32(lineTokens)
				if err == nil && mode >= 3 && curMaterial.Type == scenePkg.DiffuseMaterial {
					curMaterial.Type = scenePkg.SpecularMaterial
				}
			}

			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		}
	}

	return scanner.Err()
}

// Given an index for a face coord type (vertex, normal, tex) calculate the
// proper offset into the coord list. Wavefront format can also use negative
// indices to reference elements from the end of the coord list.
func selectFaceCoordIndex(indexToken string, coordListLen int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var vOffset int = 0
	if index < 0 {
		vOffset = coordListLen + int(index)
	} else {
		vOffset = int(index - 1)
	}
	if vOffset < 0 || vOffset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}
	return vOffset, nil
}

// Parse a float scalar value.
func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) < 2 {
		return 0, fmt.Errorf("unsupported syntax for '%s'; expected 1 argument; got %d", lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}

	return float32(val), nil
}

// Parse a Vec3 row.
func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf("unsupported syntax for '%s'; expected 3 arguments; got %d", lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec3{}
	for tokIdx := 1; tokIdx <= 3; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}

// Parse a Vec2 row.
func parseVec2(lineTokens []string) (types.Vec2, error) {
	if len(lineTokens) < 3 {
		return types.Vec2{}, fmt.Errorf("unsupported syntax for '%s'; expected 2 arguments; got %d", lineTokens[0], len(lineTokens)-1)
	}

	v := types.Vec2{}
	for tokIdx := 1; tokIdx <= 2; tokIdx++ {
		coord, err := strconv.ParseFloat(lineTokens[tokIdx], 32)
		if err != nil {
			return v, err
		}
		v[tokIdx-1] = float32(coord)
	}
	return v, nil
}
