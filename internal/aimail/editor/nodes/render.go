package nodes

// NeedsRender сравнивает атрибуты старой и новой версии ноды и сообщает,
// нужна ли перерисовка. Сравнение по значениям атрибутов, не по
// идентичности: нода с теми же атрибутами перерисовку пропускает.
// Разные типы нод всегда требуют перерисовку.
func NeedsRender(prev, next Node) bool {
	if prev == nil || next == nil {
		return true
	}
	if prev.Kind() != next.Kind() {
		return true
	}
	def, ok := registry[next.Kind()]
	if !ok {
		return true
	}
	return def.needsRender(prev, next)
}

// renderContainer - у контейнеров без собственных атрибутов перерисовку
// решают потомки; сами по себе они не меняются.
func renderContainer(prev, next Node) bool {
	return false
}

func renderHeading(prev, next Node) bool {
	return prev.(*Heading).Level != next.(*Heading).Level
}

func renderText(prev, next Node) bool {
	p, n := prev.(*Text), next.(*Text)
	return p.Content != n.Content || p.Format != n.Format
}

func renderList(prev, next Node) bool {
	return prev.(*List).Ordered != next.(*List).Ordered
}

func renderDivider(prev, next Node) bool {
	return false
}

func renderImage(prev, next Node) bool {
	p, n := prev.(*Image), next.(*Image)
	return p.Src != n.Src ||
		p.Alt != n.Alt ||
		p.Width != n.Width ||
		p.Height != n.Height ||
		p.Uploading != n.Uploading ||
		p.UploadID != n.UploadID
}

func renderButton(prev, next Node) bool {
	return prev.(*Button).Text != next.(*Button).Text
}
