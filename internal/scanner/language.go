package scanner

import (
	"strings"
)

// File kinds.
const (
	KindJava     = "java"
	KindBytecode = "bytecode"
	KindArchive  = "archive"
	KindCatalog  = "catalog"
	KindBuild    = "build"
)

var kindMap = map[string]string{
	".java":   KindJava,
	".class":  KindBytecode,
	".jar":    KindArchive,
	".war":    KindArchive,
	".yaml":   KindCatalog,
	".yml":    KindCatalog,
	".gradle": KindBuild,
	".kts":    KindBuild,
	".xml":    KindBuild,
}

// DetectKind returns the kind for a file extension, or "" when unknown.
func DetectKind(ext string) string {
	return kindMap[strings.ToLower(ext)]
}
