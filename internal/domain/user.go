package domain

type UserId = int64
type Email = string

type User struct {
	Id       UserId
	Email    Email
	PassHash string
	Enabled  bool
	Admin    bool
}

type Credentials struct {
	Email    Email
	Password string
}
