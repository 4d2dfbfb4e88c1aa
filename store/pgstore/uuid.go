package pgstore

import "github.com/google/uuid"

// validUUID guards UUID columns; an unparsable id can never match a row and
// would otherwise surface as a cast error from the server.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
