// Пакет document содержит авторитетное редактируемое состояние письма:
// упорядоченное изменяемое дерево нод с единственным корнем, транзакции
// мутаций и модель выделения.
//
// Основные возможности:
//   - Индекс нод по ключу и индекс родителей, независимые от позиции в дереве.
//   - Отдельный индекс uploadId -> ключ ноды для асинхронных загрузок.
//   - Транзакции: пакет мутаций, наблюдатели видят дерево только после коммита.
//   - Восстановление инвариантов: дерево никогда не остается без блоков.
package document

import (
	"errors"
	"log/slog"

	"github.com/aisa-it/aimail/aimail.go/internal/aimail/editor/nodes"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrRemoveRoot   = errors.New("root node cannot be removed")
	ErrDuplicateKey = errors.New("node key already in tree")
)

// Tree - дерево документа. Дерево принадлежит движку и мутируется только
// внутри транзакций; внешние компоненты не вставляют ноды напрямую.
// Синхронизацию обеспечивает владелец (редактор): все мутации происходят
// в потоке обрабатываемого события или завершившейся фоновой операции.
type Tree struct {
	root    *nodes.Root
	index   map[nodes.Key]nodes.Node
	parents map[nodes.Key]nodes.Key
	uploads map[string]nodes.Key

	sel Selection

	listeners []func(dirty []nodes.Key)
}

// NewTree создает дерево с корнем и одним пустым параграфом.
func NewTree() *Tree {
	t := &Tree{
		root:    nodes.NewRoot(),
		index:   make(map[nodes.Key]nodes.Node),
		parents: make(map[nodes.Key]nodes.Key),
		uploads: make(map[string]nodes.Key),
	}
	t.index[t.root.Key()] = t.root

	p := nodes.NewParagraph()
	t.root.Children = []nodes.Node{p}
	t.register(p, t.root.Key())
	return t
}

func (t *Tree) Root() *nodes.Root { return t.root }

// Node возвращает ноду по ключу.
func (t *Tree) Node(key nodes.Key) (nodes.Node, bool) {
	n, ok := t.index[key]
	return n, ok
}

// Parent возвращает родителя ноды.
func (t *Tree) Parent(key nodes.Key) (nodes.Node, bool) {
	parentKey, ok := t.parents[key]
	if !ok {
		return nil, false
	}
	return t.Node(parentKey)
}

// ByUpload находит разрешением по индексу ноду-заглушку активной загрузки.
// Промах - это явный ответ "заглушки больше нет", а не сбой обхода дерева.
func (t *Tree) ByUpload(uploadID string) (nodes.Node, bool) {
	key, ok := t.uploads[uploadID]
	if !ok {
		return nil, false
	}
	return t.Node(key)
}

// Blocks возвращает копию списка блоков верхнего уровня.
func (t *Tree) Blocks() []nodes.Node {
	out := make([]nodes.Node, len(t.root.Children))
	copy(out, t.root.Children)
	return out
}

// PrevSibling возвращает предыдущего соседа ноды.
func (t *Tree) PrevSibling(key nodes.Key) (nodes.Node, bool) {
	parent, ok := t.Parent(key)
	if !ok {
		return nil, false
	}
	children := nodes.Children(parent)
	for i, child := range children {
		if child.Key() == key {
			if i == 0 {
				return nil, false
			}
			return children[i-1], true
		}
	}
	return nil, false
}

// NextSibling возвращает следующего соседа ноды.
func (t *Tree) NextSibling(key nodes.Key) (nodes.Node, bool) {
	parent, ok := t.Parent(key)
	if !ok {
		return nil, false
	}
	children := nodes.Children(parent)
	for i, child := range children {
		if child.Key() == key {
			if i == len(children)-1 {
				return nil, false
			}
			return children[i+1], true
		}
	}
	return nil, false
}

// BlockOf поднимается от ноды до ее блока верхнего уровня.
func (t *Tree) BlockOf(key nodes.Key) (nodes.Node, bool) {
	n, ok := t.Node(key)
	if !ok {
		return nil, false
	}
	for {
		parentKey, ok := t.parents[n.Key()]
		if !ok {
			return nil, false
		}
		if parentKey == t.root.Key() {
			return n, true
		}
		parent, ok := t.Node(parentKey)
		if !ok {
			return nil, false
		}
		n = parent
	}
}

// Walk обходит дерево в глубину. Возврат true из fn останавливает обход.
func (t *Tree) Walk(fn func(n nodes.Node) bool) {
	walk(t.root, fn)
}

func walk(n nodes.Node, fn func(n nodes.Node) bool) bool {
	if fn(n) {
		return true
	}
	for _, child := range nodes.Children(n) {
		if walk(child, fn) {
			return true
		}
	}
	return false
}

// IsEmpty сообщает, что документ фактически пуст: единственный блок -
// параграф без текста.
func (t *Tree) IsEmpty() bool {
	if len(t.root.Children) != 1 {
		return false
	}
	p, ok := t.root.Children[0].(*nodes.Paragraph)
	if !ok {
		return false
	}
	return nodes.TextContent(p) == ""
}

// Selection возвращает текущее выделение.
func (t *Tree) Selection() *Selection { return &t.sel }

// OnChange регистрирует наблюдателя коммитов. Наблюдатель вызывается один
// раз на транзакцию, уже после применения всех мутаций.
func (t *Tree) OnChange(fn func(dirty []nodes.Key)) {
	t.listeners = append(t.listeners, fn)
}

// Update выполняет fn внутри транзакции. Ошибка fn логируется и
// превращается в no-op для наблюдателей: сессия редактирования не
// прерывается из-за одной неудавшейся операции.
func (t *Tree) Update(fn func(tx *Tx) error) error {
	tx := &Tx{t: t, dirty: make(map[nodes.Key]struct{})}
	if err := fn(tx); err != nil {
		slog.Error("Transaction rejected", "err", err)
		t.repair(tx)
		return err
	}

	t.repair(tx)

	if len(tx.dirty) > 0 {
		dirty := make([]nodes.Key, 0, len(tx.dirty))
		for key := range tx.dirty {
			dirty = append(dirty, key)
		}
		for _, l := range t.listeners {
			l(dirty)
		}
	}
	return nil
}

// repair восстанавливает инвариант "в документе всегда есть хотя бы один
// блок": вместо удаленного последнего блока синтезируется пустой параграф.
func (t *Tree) repair(tx *Tx) {
	if len(t.root.Children) > 0 {
		return
	}
	p := nodes.NewParagraph()
	t.root.Children = []nodes.Node{p}
	t.register(p, t.root.Key())
	tx.dirty[p.Key()] = struct{}{}
}

// register вносит ноду и всех ее потомков в индексы.
func (t *Tree) register(n nodes.Node, parent nodes.Key) {
	t.index[n.Key()] = n
	t.parents[n.Key()] = parent
	if id := nodes.UploadID(n); id != "" && nodes.IsUploading(n) {
		t.uploads[id] = n.Key()
	}
	for _, child := range nodes.Children(n) {
		t.register(child, n.Key())
	}
}

// unregister убирает ноду и потомков из индексов и из выделения.
func (t *Tree) unregister(n nodes.Node) {
	for _, child := range nodes.Children(n) {
		t.unregister(child)
	}
	delete(t.index, n.Key())
	delete(t.parents, n.Key())
	if id := nodes.UploadID(n); id != "" {
		if key, ok := t.uploads[id]; ok && key == n.Key() {
			delete(t.uploads, id)
		}
	}
	t.sel.drop(n.Key())
}
