package studyplan

import "fmt"

// MaterialCode generates the fallback code of a material from 0-based
// positions. sec < 0 means the material sits directly under its year.
func MaterialCode(year, semester, sec, mat int) string {
	if sec < 0 {
		return fmt.Sprintf("MAT-%d-%d-%d", year+1, semester+1, mat+1)
	}
	return fmt.Sprintf("MAT-%d-%d-%d-%d", year+1, semester+1, sec+1, mat+1)
}
