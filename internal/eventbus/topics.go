package eventbus

// Process-wide topics.
const (
	// TopicCartChanged is a payload-free trigger published after any
	// successful cart mutation. Every cart count display refetches on it.
	TopicCartChanged = "updateCartNumber"

	// TopicCartCount carries a domain.CartCountChanged after each applied refresh.
	TopicCartCount = "cartCount"

	// TopicLiveChanged carries a domain.LiveView whenever the live session
	// roster or lifecycle changes.
	TopicLiveChanged = "liveChanged"
)
