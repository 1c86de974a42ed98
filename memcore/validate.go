package memcore

type Validatable interface {
	Validate() error
}
