// Package engine содержит гейт зависимостей задач.
//
// Checker разрешает ID зависимостей через TaskLookup и отвечает на вопрос,
// можно ли перевести задачу в completed. Граф зависимостей плоский:
// проверяется только один уровень, транзитивные зависимости не обходятся.
//
// Отсутствующие зависимости обрабатываются согласно MissingDependencyPolicy.
// По умолчанию (MissingDependencyIgnore) удалённая зависимость не блокирует
// завершение, так что список из одних отсутствующих ID проходит гейт.
package engine
