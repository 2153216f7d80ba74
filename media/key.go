package media

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateObjectKey returns folder/<random UUID>.<ext>, where ext is the text after the last "." of
// fileName. Without an extension the key has no suffix, and an empty folder means no prefix.
func GenerateObjectKey(folder, fileName string) string {
	return objectKey(folder, fileName, uuid.NewString())
}

func objectKey(folder, fileName, id string) string {
	key := id
	if ext := fileExtension(fileName); ext != "" {
		key += "." + ext
	}

	folder = strings.TrimRight(folder, "/")
	if folder == "" {
		return key
	}
	return folder + "/" + key
}

func fileExtension(fileName string) string {
	i := strings.LastIndex(fileName, ".")
	if i < 0 {
		return ""
	}
	return fileName[i+1:]
}
