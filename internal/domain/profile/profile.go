package profile

type Profile struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type Country struct {
	ID      int64  `json:"id"`
	Country string `json:"country"`
}

type Municipality struct {
	ID   int64  `json:"id"`
	Name string `json:"major_municipality"`
}
