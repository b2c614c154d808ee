package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// pathID names a UUID path parameter and the error reported when it does
// not parse.
type pathID struct {
	param   string
	code    string
	message string
}

var (
	assemblyIDParam = pathID{param: "id", code: "invalid_assembly_id", message: "Invalid assembly ID format"}
	instanceIDParam = pathID{param: "iid", code: "invalid_instance_id", message: "Invalid part instance ID format"}
)

// ParseAssemblyID reads the {id} path parameter. On failure it writes a 400
// and returns false.
func ParseAssemblyID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return assemblyIDParam.parse(w, r, logger)
}

// ParseInstanceID reads the {iid} path parameter of a part instance route.
func ParseInstanceID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return instanceIDParam.parse(w, r, logger)
}

func (p pathID) parse(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(p.param))
	if err != nil || id == uuid.Nil {
		writeError(w, http.StatusBadRequest, p.code, p.message, logger)
		return uuid.Nil, false
	}
	return id, true
}
