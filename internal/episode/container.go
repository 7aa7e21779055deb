package episode

import "strings"

// Container is the media container family implied by a file extension.
type Container string

const (
	ContainerMatroska Container = "Matroska"
	ContainerMPEG4    Container = "MPEG4"
	ContainerAVI      Container = "AVI"
	ContainerASF      Container = "ASF"
)

var containerByExtension = map[string]Container{
	"mkv":  ContainerMatroska,
	"mk3d": ContainerMatroska,
	"mka":  ContainerMatroska,
	"mks":  ContainerMatroska,
	"mp4":  ContainerMPEG4,
	"m4a":  ContainerMPEG4,
	"m4p":  ContainerMPEG4,
	"m4b":  ContainerMPEG4,
	"m4r":  ContainerMPEG4,
	"m4v":  ContainerMPEG4,
	"avi":  ContainerAVI,
	"wmv":  ContainerASF,
	"wma":  ContainerASF,
	"asf":  ContainerASF,
}

// ContainerForExtension maps an extension, with or without the leading dot, to
// its container. The lookup is case-insensitive.
func ContainerForExtension(ext string) (Container, bool) {
	c, ok := containerByExtension[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return c, ok
}
