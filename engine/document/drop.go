package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-gfx/engine/node"
)

// ErrUnsupportedExtension is returned by Drop for files no node can be made from.
var ErrUnsupportedExtension = errors.New("document: unsupported file extension")

// dropKinds maps lower-case file extensions to the kind of node a dropped file creates.
var dropKinds = map[string]node.Kind{
	"frag": node.KindFilter,
	"glsl": node.KindFilter,
	"wgsl": node.KindFilter,
	"isf":  node.KindISF,
	"fs":   node.KindISF,
	"mkv":  node.KindVideo,
	"mov":  node.KindVideo,
	"mp4":  node.KindVideo,
	"h264": node.KindVideo,
	"avi":  node.KindVideo,
	"hap":  node.KindVideo,
	"mpg":  node.KindVideo,
	"mpeg": node.KindVideo,
	"png":  node.KindVideo,
	"jpg":  node.KindVideo,
	"jpeg": node.KindVideo,
}

// Drop turns a file dropped on the window into a node document. Shader files carry their content
// as source; media files carry their path.
//
// Parameters:
//   - path: the dropped file
//
// Returns:
//   - NodeDocument: the request, labeled with the file name
//   - error: ErrUnsupportedExtension, or the error of reading a shader file
func Drop(path string) (NodeDocument, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	kind, ok := dropKinds[ext]
	if !ok {
		return NodeDocument{}, fmt.Errorf("%w: %q", ErrUnsupportedExtension, path)
	}

	doc := NodeDocument{Kind: kind.String(), Label: filepath.Base(path)}
	if kind == node.KindVideo {
		doc.Path = path
		return doc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return NodeDocument{}, fmt.Errorf("document: read %s: %w", path, err)
	}
	doc.Source = string(data)
	return doc, nil
}
