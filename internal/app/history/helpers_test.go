package history

import "campuschat/internal/app/user"

func subject(id string) user.Subject {
	return user.Subject{ID: id, Alias: "Anon" + id}
}
