package document

import (
	"fmt"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

// Tx - транзакция над деревом. Все мутации дерева проходят через методы
// транзакции; после возврата из Update наблюдатели получают один
// консолидированный сигнал об измененных ключах.
type Tx struct {
	t     *Tree
	dirty map[nodes.Key]struct{}
}

// Node возвращает ноду по ключу.
func (tx *Tx) Node(key nodes.Key) (nodes.Node, bool) { return tx.t.Node(key) }

// Parent возвращает родителя ноды.
func (tx *Tx) Parent(key nodes.Key) (nodes.Node, bool) { return tx.t.Parent(key) }

// ByUpload находит заглушку загрузки по uploadId.
func (tx *Tx) ByUpload(uploadID string) (nodes.Node, bool) { return tx.t.ByUpload(uploadID) }

// Selection возвращает выделение для корректировки внутри транзакции.
func (tx *Tx) Selection() *Selection { return tx.t.Selection() }

// BlockOf возвращает блок верхнего уровня, содержащий ноду.
func (tx *Tx) BlockOf(key nodes.Key) (nodes.Node, bool) { return tx.t.BlockOf(key) }

// PrevSibling возвращает предыдущего соседа ноды.
func (tx *Tx) PrevSibling(key nodes.Key) (nodes.Node, bool) { return tx.t.PrevSibling(key) }

// NextSibling возвращает следующего соседа ноды.
func (tx *Tx) NextSibling(key nodes.Key) (nodes.Node, bool) { return tx.t.NextSibling(key) }

func (tx *Tx) markDirty(ns ...nodes.Node) {
	for _, n := range ns {
		tx.dirty[n.Key()] = struct{}{}
	}
}

// MarkDirty помечает ноду измененной без структурных правок
// (редактирование текста, переключение формата).
func (tx *Tx) MarkDirty(key nodes.Key) {
	tx.dirty[key] = struct{}{}
}

func (tx *Tx) checkNew(ns []nodes.Node) error {
	for _, n := range ns {
		if _, exists := tx.t.index[n.Key()]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, n.Key())
		}
	}
	return nil
}

// InsertAfter вставляет ноды сразу после ноды с данным ключом.
func (tx *Tx) InsertAfter(key nodes.Key, ns ...nodes.Node) error {
	return tx.insertAt(key, 1, ns)
}

// InsertBefore вставляет ноды непосредственно перед нодой с данным ключом.
func (tx *Tx) InsertBefore(key nodes.Key, ns ...nodes.Node) error {
	return tx.insertAt(key, 0, ns)
}

func (tx *Tx) insertAt(key nodes.Key, shift int, ns []nodes.Node) error {
	if len(ns) == 0 {
		return nil
	}
	if err := tx.checkNew(ns); err != nil {
		return err
	}
	parent, ok := tx.t.Parent(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, key)
	}
	children := nodes.Children(parent)
	for i, child := range children {
		if child.Key() != key {
			continue
		}
		at := i + shift
		updated := make([]nodes.Node, 0, len(children)+len(ns))
		updated = append(updated, children[:at]...)
		updated = append(updated, ns...)
		updated = append(updated, children[at:]...)
		nodes.SetChildren(parent, updated)
		for _, n := range ns {
			tx.t.register(n, parent.Key())
		}
		tx.markDirty(ns...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNodeNotFound, key)
}

// Append добавляет ноды в конец потомков родителя.
func (tx *Tx) Append(parentKey nodes.Key, ns ...nodes.Node) error {
	if len(ns) == 0 {
		return nil
	}
	if err := tx.checkNew(ns); err != nil {
		return err
	}
	parent, ok := tx.t.Node(parentKey)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, parentKey)
	}
	nodes.SetChildren(parent, append(nodes.Children(parent), ns...))
	for _, n := range ns {
		tx.t.register(n, parent.Key())
	}
	tx.markDirty(ns...)
	return nil
}

// InsertBlocks вставляет блоки верхнего уровня. При after == nil блоки
// добавляются в конец документа. Особый случай: если документ состоит из
// единственного пустого параграфа, этот параграф-заглушка сначала
// удаляется, а не остается перед вставленным содержимым.
func (tx *Tx) InsertBlocks(after *nodes.Key, ns []nodes.Node) error {
	if len(ns) == 0 {
		return nil
	}

	if tx.t.IsEmpty() {
		placeholder := tx.t.root.Children[0]
		if err := tx.Remove(placeholder.Key()); err != nil {
			return err
		}
		return tx.Append(tx.t.root.Key(), ns...)
	}

	if after == nil {
		return tx.Append(tx.t.root.Key(), ns...)
	}

	block, ok := tx.t.BlockOf(*after)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, *after)
	}
	return tx.InsertAfter(block.Key(), ns...)
}

// Replace атомарно заменяет ноду по ключу на новую.
func (tx *Tx) Replace(key nodes.Key, n nodes.Node) error {
	if err := tx.checkNew([]nodes.Node{n}); err != nil {
		return err
	}
	old, ok := tx.t.Node(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, key)
	}
	if old.Key() == tx.t.root.Key() {
		return ErrRemoveRoot
	}
	parent, _ := tx.t.Parent(key)
	children := nodes.Children(parent)
	for i, child := range children {
		if child.Key() == key {
			tx.t.unregister(old)
			children[i] = n
			tx.t.register(n, parent.Key())
			tx.markDirty(n)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNodeNotFound, key)
}

// Remove удаляет ноду из дерева. Корень не удаляется никогда; удаление
// последнего блока компенсируется синтезом пустого параграфа при коммите.
// Если нода была выделена, выделение очищается.
func (tx *Tx) Remove(key nodes.Key) error {
	n, ok := tx.t.Node(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, key)
	}
	if n.Key() == tx.t.root.Key() {
		return ErrRemoveRoot
	}
	parent, _ := tx.t.Parent(key)
	children := nodes.Children(parent)
	for i, child := range children {
		if child.Key() == key {
			nodes.SetChildren(parent, append(children[:i:i], children[i+1:]...))
			tx.t.unregister(n)
			tx.markDirty(parent)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNodeNotFound, key)
}

// Merge сливает текстовое содержимое блока src в конец блока dst и
// удаляет src. Текст src дописывается в последний текстовый фрагмент dst
// (при его отсутствии создается новый). Слияние происходит только между
// соседями внутри одного родителя.
// Возвращает ключ текстового фрагмента и смещение точки слияния.
func (tx *Tx) Merge(dstKey, srcKey nodes.Key) (nodes.Key, int, error) {
	dst, ok := tx.t.Node(dstKey)
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrNodeNotFound, dstKey)
	}
	src, ok := tx.t.Node(srcKey)
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrNodeNotFound, srcKey)
	}
	if !nodes.Mergeable(dst) || !nodes.Mergeable(src) {
		return "", 0, fmt.Errorf("merge of %s into %s is not allowed", src.Kind(), dst.Kind())
	}

	content := nodes.TextContent(src)

	last := nodes.LastText(dst)
	if last == nil {
		last = nodes.NewText("", 0)
		if err := tx.Append(dst.Key(), last); err != nil {
			return "", 0, err
		}
	}
	offset := len([]rune(last.Content))
	last.Content += content
	tx.markDirty(dst, last)

	if err := tx.Remove(srcKey); err != nil {
		return "", 0, err
	}
	return last.Key(), offset, nil
}
