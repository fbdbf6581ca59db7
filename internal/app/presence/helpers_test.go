package presence

import campususer "campuschat/internal/app/user"

func user(id string) campususer.Subject {
	return campususer.Subject{ID: id, Alias: "Anon" + id}
}
