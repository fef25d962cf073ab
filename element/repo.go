package element

import "fmt"

var (
	volumeRepo = make(map[Topology]*volumeME)
	faceRepo   = make(map[Topology]*faceME)
)

func init() {
	for _, t := range []Topology{TopoLine2, TopoTri3, TopoQuad4, TopoTet4, TopoHex8} {
		volumeRepo[t] = newVolumeME(t)
	}
	for _, t := range []Topology{TopoNode1, TopoLine2, TopoTri3, TopoQuad4} {
		faceRepo[t] = newFaceME(t)
	}
}

// GetVolumeMasterElement returns the shared evaluator for a volume topology
func GetVolumeMasterElement(topo Topology) (MasterElement, error) {
	me, ok := volumeRepo[topo]
	if !ok {
		return nil, fmt.Errorf("volume master element %s: %w", topo, ErrUnsupportedTopology)
	}
	return me, nil
}

// GetFaceMasterElement returns the shared evaluator for a face topology
func GetFaceMasterElement(topo Topology) (FaceMasterElement, error) {
	fe, ok := faceRepo[topo]
	if !ok {
		return nil, fmt.Errorf("face master element %s: %w", topo, ErrUnsupportedTopology)
	}
	return fe, nil
}

// VolumeMasterElementOf returns the evaluator matching a traits type
func VolumeMasterElementOf[T AlgTraits]() MasterElement {
	var traits T
	return volumeRepo[traits.Topology()]
}

// FaceMasterElementOf returns the face evaluator matching a face traits type
func FaceMasterElementOf[F FaceTraits]() FaceMasterElement {
	var traits F
	return faceRepo[traits.Topology()]
}
